package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RowanDark/cipherscore/internal/attack"
)

func TestLoadPrecedence(t *testing.T) {
	tempDir := t.TempDir()

	homeDir := filepath.Join(tempDir, "home")
	if err := os.MkdirAll(filepath.Join(homeDir, ".cipherscore"), 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	homeConfig := []byte(`audit:
  rounds: 250
  iterations: 5000
history:
  path: /var/lib/cipherscore/home.db
tracing:
  file: /tmp/home-spans.jsonl
`)
	if err := os.WriteFile(filepath.Join(homeDir, ".cipherscore", "config.yaml"), homeConfig, 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	// Provide a local YAML config overriding the home file.
	workDir := filepath.Join(tempDir, "work")
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatalf("mkdir work: %v", err)
	}
	localConfig := []byte(`audit:
  rounds: 400
  attack_enabled: false
plugins:
  capabilities: [CAP_XOR, CAP_ROTATE]
  max_rounds: 64
`)
	if err := os.WriteFile(filepath.Join(workDir, "cipherscore.yml"), localConfig, 0o644); err != nil {
		t.Fatalf("write local config: %v", err)
	}

	// Ensure env overrides beat file configuration.
	t.Setenv("CIPHERSCORE_HISTORY_PATH", "/env/history.db")
	t.Setenv("CIPHERSCORE_ATTACK_THRESHOLD", "0.2")

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer func() {
		_ = os.Chdir(cwd)
	}()
	if err := os.Chdir(workDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Audit.Rounds != 400 {
		t.Fatalf("expected local rounds override, got %d", cfg.Audit.Rounds)
	}
	if cfg.Audit.Iterations != 5000 {
		t.Fatalf("expected home iterations, got %d", cfg.Audit.Iterations)
	}
	if cfg.Audit.AttackEnabled {
		t.Fatal("expected attack disabled from local config")
	}
	if cfg.History.Path != "/env/history.db" {
		t.Fatalf("expected env override for history path, got %s", cfg.History.Path)
	}
	if cfg.Audit.AttackThreshold != 0.2 {
		t.Fatalf("expected env threshold override, got %v", cfg.Audit.AttackThreshold)
	}
	if cfg.Tracing.FilePath != "/tmp/home-spans.jsonl" {
		t.Fatalf("expected home tracing file, got %s", cfg.Tracing.FilePath)
	}

	policy := cfg.PluginPolicy()
	if policy.MaxRounds != 64 || len(policy.Capabilities) != 2 {
		t.Fatalf("unexpected plugin policy: %+v", policy)
	}
	if got := cfg.AuditConfiguration(); got.Rounds != 400 || string(got.Key) != "0123456789abcdef" {
		t.Fatalf("unexpected audit configuration: %+v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	// Default derives the history path from HOME, so compare after the override.
	defaults := Default()
	if !reflect.DeepEqual(cfg, defaults) {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
	if !cfg.Audit.AttackEnabled {
		t.Fatal("attack probe should be enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	data := []byte(`audit:
  key: "  secret-key  "
  attack_trials: 100
  attack_input_delta: 4
logging:
  audit_log: /tmp/audit.jsonl
  stdout: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CIPHERSCORE_ITERATIONS", "2500")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Audit.Key != "secret-key" {
		t.Fatalf("expected trimmed key, got %q", cfg.Audit.Key)
	}
	if cfg.Audit.AttackTrials != 100 || cfg.Audit.Iterations != 2500 || cfg.Audit.AttackInputDelta != 4 {
		t.Fatalf("unexpected audit section: %+v", cfg.Audit)
	}
	if !cfg.Logging.Stdout || cfg.Logging.AuditLog != "/tmp/audit.jsonl" {
		t.Fatalf("unexpected logging section: %+v", cfg.Logging)
	}
	opts := cfg.AttackOptions()
	if len(opts) != 4 {
		t.Fatalf("expected four attack options, got %d", len(opts))
	}
	projected := cfg.AuditConfiguration()
	if projected.AttackInputDelta != 4 || projected.AttackTargetDelta != attack.DefaultTargetDelta {
		t.Fatalf("unexpected projected deltas: %+v", projected)
	}
}

func TestAttackDeltaEnvOverrides(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
	t.Setenv("CIPHERSCORE_ATTACK_INPUT_DELTA", "0x0010")
	t.Setenv("CIPHERSCORE_ATTACK_TARGET_DELTA", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Audit.AttackInputDelta != 0x10 || cfg.Audit.AttackTargetDelta != 32 {
		t.Fatalf("unexpected deltas: %+v", cfg.Audit)
	}

	t.Setenv("CIPHERSCORE_ATTACK_INPUT_DELTA", "0x10000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for an input delta wider than 16 bits")
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	cases := map[string]string{
		"syntax":         "audit: [",
		"bad iterations": "audit:\n  iterations: 0\n",
		"bad capability": "plugins:\n  capabilities: [CAP_NETWORK]\n",
		"bad ratio":      "tracing:\n  sample_ratio: 2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
	t.Setenv("CIPHERSCORE_ROUNDS", "many")
	t.Setenv("CIPHERSCORE_ATTACK_ENABLED", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed environment overrides")
	}
}
