package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/cipherscore/internal/attack"
	"github.com/RowanDark/cipherscore/internal/audit"
	"github.com/RowanDark/cipherscore/internal/plugins/roundfn"
)

const envPrefix = "CIPHERSCORE_"

// Config captures the cipherscore configuration resolved from defaults,
// optional files, and environment overrides.
type Config struct {
	Audit   AuditConfig   `yaml:"audit"`
	Plugins PluginConfig  `yaml:"plugins"`
	History HistoryConfig `yaml:"history"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

// AuditConfig is the reference workload for every run.
type AuditConfig struct {
	Rounds          int     `yaml:"rounds"`
	Iterations      int     `yaml:"iterations"`
	Key             string  `yaml:"key"`
	Plaintext       string  `yaml:"plaintext"`
	AttackEnabled   bool    `yaml:"attack_enabled"`
	AttackTrials    int     `yaml:"attack_trials"`
	AttackThreshold float64 `yaml:"attack_threshold"`
	// AttackInputDelta and AttackTargetDelta select the differential pair.
	AttackInputDelta  uint16 `yaml:"attack_input_delta"`
	AttackTargetDelta uint64 `yaml:"attack_target_delta"`
}

// PluginConfig bounds what plugin sources may declare.
type PluginConfig struct {
	Allowlist      string   `yaml:"allowlist"`
	Capabilities   []string `yaml:"capabilities"`
	MaxSourceBytes int      `yaml:"max_source_bytes"`
	MaxRounds      int      `yaml:"max_rounds"`
	MaxSteps       int      `yaml:"max_steps"`
}

// HistoryConfig locates the run store.
type HistoryConfig struct {
	Path   string `yaml:"path"`
	Record bool   `yaml:"record"`
}

// TracingConfig controls span export. An empty FilePath disables tracing.
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	FilePath    string  `yaml:"file"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig controls the audit event log.
type LoggingConfig struct {
	AuditLog string `yaml:"audit_log"`
	Stdout   bool   `yaml:"stdout"`
}

// Default returns the built-in configuration.
func Default() Config {
	ref := audit.DefaultConfiguration()
	policy := roundfn.DefaultPolicy()
	return Config{
		Audit: AuditConfig{
			Rounds:            ref.Rounds,
			Iterations:        ref.Iterations,
			Key:               string(ref.Key),
			Plaintext:         string(ref.Plaintext),
			AttackEnabled:     true,
			AttackTrials:      ref.AttackTrials,
			AttackThreshold:   ref.AttackThreshold,
			AttackInputDelta:  ref.AttackInputDelta,
			AttackTargetDelta: ref.AttackTargetDelta,
		},
		Plugins: PluginConfig{
			MaxSourceBytes: policy.MaxSourceBytes,
			MaxRounds:      policy.MaxRounds,
			MaxSteps:       policy.MaxSteps,
		},
		History: HistoryConfig{
			Path: defaultHistoryPath(),
		},
		Tracing: TracingConfig{
			ServiceName: "cipherscore",
			SampleRatio: 1,
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. The lookup order for configuration files is:
//  1. ~/.cipherscore/config.yaml
//  2. ./cipherscore.yml
//
// Environment variables prefixed with CIPHERSCORE_ have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if err := loadHomeConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLocalConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFile resolves defaults, then path, then environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the projected engine settings.
func (c Config) Validate() error {
	if err := c.AuditConfiguration().Validate(); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}
	if err := c.PluginPolicy().Validate(); err != nil {
		return fmt.Errorf("plugin config: %w", err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be in [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// AuditConfiguration projects the audit section onto the orchestrator type.
func (c Config) AuditConfiguration() audit.Configuration {
	return audit.Configuration{
		Rounds:            c.Audit.Rounds,
		Iterations:        c.Audit.Iterations,
		Key:               []byte(c.Audit.Key),
		Plaintext:         []byte(c.Audit.Plaintext),
		AttackTrials:      c.Audit.AttackTrials,
		AttackThreshold:   c.Audit.AttackThreshold,
		AttackInputDelta:  c.Audit.AttackInputDelta,
		AttackTargetDelta: c.Audit.AttackTargetDelta,
	}
}

// AttackOptions returns the simulator options matching the audit section.
// Zero-valued settings are left to the simulator defaults.
func (c Config) AttackOptions() []attack.Option {
	var opts []attack.Option
	if c.Audit.AttackTrials != 0 {
		opts = append(opts, attack.WithTrials(c.Audit.AttackTrials))
	}
	if c.Audit.AttackThreshold != 0 {
		opts = append(opts, attack.WithThreshold(c.Audit.AttackThreshold))
	}
	if c.Audit.AttackInputDelta != 0 {
		opts = append(opts, attack.WithInputDelta(c.Audit.AttackInputDelta))
	}
	if c.Audit.AttackTargetDelta != 0 {
		opts = append(opts, attack.WithTargetDelta(c.Audit.AttackTargetDelta))
	}
	return opts
}

// PluginPolicy projects the plugin section onto the interpreter policy.
func (c Config) PluginPolicy() roundfn.Policy {
	return roundfn.Policy{
		Capabilities:   append([]string(nil), c.Plugins.Capabilities...),
		MaxSourceBytes: c.Plugins.MaxSourceBytes,
		MaxRounds:      c.Plugins.MaxRounds,
		MaxSteps:       c.Plugins.MaxSteps,
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".cipherscore", "history.db")
	}
	return filepath.Join(home, ".cipherscore", "history.db")
}

func loadHomeConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory means no home config.
		return nil
	}
	return loadOptional(cfg, filepath.Join(home, ".cipherscore", "config.yaml"))
}

func loadLocalConfig(cfg *Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	return loadOptional(cfg, filepath.Join(wd, "cipherscore.yml"))
}

func loadOptional(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type fileConfig struct {
	Audit   *fileAuditConfig   `yaml:"audit"`
	Plugins *filePluginConfig  `yaml:"plugins"`
	History *fileHistoryConfig `yaml:"history"`
	Tracing *fileTracingConfig `yaml:"tracing"`
	Logging *fileLoggingConfig `yaml:"logging"`
}

type fileAuditConfig struct {
	Rounds            *int     `yaml:"rounds"`
	Iterations        *int     `yaml:"iterations"`
	Key               *string  `yaml:"key"`
	Plaintext         *string  `yaml:"plaintext"`
	AttackEnabled     *bool    `yaml:"attack_enabled"`
	AttackTrials      *int     `yaml:"attack_trials"`
	AttackThreshold   *float64 `yaml:"attack_threshold"`
	AttackInputDelta  *uint16  `yaml:"attack_input_delta"`
	AttackTargetDelta *uint64  `yaml:"attack_target_delta"`
}

type filePluginConfig struct {
	Allowlist      *string  `yaml:"allowlist"`
	Capabilities   []string `yaml:"capabilities"`
	MaxSourceBytes *int     `yaml:"max_source_bytes"`
	MaxRounds      *int     `yaml:"max_rounds"`
	MaxSteps       *int     `yaml:"max_steps"`
}

type fileHistoryConfig struct {
	Path   *string `yaml:"path"`
	Record *bool   `yaml:"record"`
}

type fileTracingConfig struct {
	ServiceName *string  `yaml:"service_name"`
	FilePath    *string  `yaml:"file"`
	SampleRatio *float64 `yaml:"sample_ratio"`
}

type fileLoggingConfig struct {
	AuditLog *string `yaml:"audit_log"`
	Stdout   *bool   `yaml:"stdout"`
}

func applyFileConfig(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if a := fc.Audit; a != nil {
		setInt(&cfg.Audit.Rounds, a.Rounds)
		setInt(&cfg.Audit.Iterations, a.Iterations)
		setString(&cfg.Audit.Key, a.Key)
		setString(&cfg.Audit.Plaintext, a.Plaintext)
		setBool(&cfg.Audit.AttackEnabled, a.AttackEnabled)
		setInt(&cfg.Audit.AttackTrials, a.AttackTrials)
		setFloat(&cfg.Audit.AttackThreshold, a.AttackThreshold)
		if a.AttackInputDelta != nil {
			cfg.Audit.AttackInputDelta = *a.AttackInputDelta
		}
		if a.AttackTargetDelta != nil {
			cfg.Audit.AttackTargetDelta = *a.AttackTargetDelta
		}
	}
	if p := fc.Plugins; p != nil {
		setString(&cfg.Plugins.Allowlist, p.Allowlist)
		if p.Capabilities != nil {
			cfg.Plugins.Capabilities = p.Capabilities
		}
		setInt(&cfg.Plugins.MaxSourceBytes, p.MaxSourceBytes)
		setInt(&cfg.Plugins.MaxRounds, p.MaxRounds)
		setInt(&cfg.Plugins.MaxSteps, p.MaxSteps)
	}
	if h := fc.History; h != nil {
		setString(&cfg.History.Path, h.Path)
		setBool(&cfg.History.Record, h.Record)
	}
	if t := fc.Tracing; t != nil {
		setString(&cfg.Tracing.ServiceName, t.ServiceName)
		setString(&cfg.Tracing.FilePath, t.FilePath)
		setFloat(&cfg.Tracing.SampleRatio, t.SampleRatio)
	}
	if l := fc.Logging; l != nil {
		setString(&cfg.Logging.AuditLog, l.AuditLog)
		setBool(&cfg.Logging.Stdout, l.Stdout)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if val, ok := lookup(name); ok {
			*dst = val
		}
	}
	num := func(name string, dst *int) {
		if val, ok := lookup(name); ok {
			parsed, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	float := func(name string, dst *float64) {
		if val, ok := lookup(name); ok {
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}
	unsigned := func(name string, bits int) (uint64, bool) {
		val, ok := lookup(name)
		if !ok {
			return 0, false
		}
		parsed, err := strconv.ParseUint(val, 0, bits)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return 0, false
		}
		return parsed, true
	}
	boolean := func(name string, dst *bool) {
		if val, ok := lookup(name); ok {
			parsed, err := parseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = parsed
		}
	}

	num("ROUNDS", &cfg.Audit.Rounds)
	num("ITERATIONS", &cfg.Audit.Iterations)
	str("KEY", &cfg.Audit.Key)
	num("ATTACK_TRIALS", &cfg.Audit.AttackTrials)
	float("ATTACK_THRESHOLD", &cfg.Audit.AttackThreshold)
	boolean("ATTACK_ENABLED", &cfg.Audit.AttackEnabled)
	if d, ok := unsigned("ATTACK_INPUT_DELTA", 16); ok {
		cfg.Audit.AttackInputDelta = uint16(d)
	}
	if d, ok := unsigned("ATTACK_TARGET_DELTA", 64); ok {
		cfg.Audit.AttackTargetDelta = d
	}
	str("HISTORY_PATH", &cfg.History.Path)
	boolean("HISTORY_RECORD", &cfg.History.Record)
	str("AUDIT_LOG", &cfg.Logging.AuditLog)
	str("TRACE_FILE", &cfg.Tracing.FilePath)
	float("TRACE_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)
	str("PLUGIN_ALLOWLIST", &cfg.Plugins.Allowlist)
	num("PLUGIN_MAX_ROUNDS", &cfg.Plugins.MaxRounds)
	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(envPrefix + name))
	return val, val != ""
}

func parseBool(val string) (bool, error) {
	v := strings.TrimSpace(strings.ToLower(val))
	switch v {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", val)
	}
}
