package audit

import (
	"errors"
	"fmt"

	"github.com/RowanDark/cipherscore/internal/attack"
)

const (
	DefaultRounds     = 1000
	DefaultIterations = 10000
)

var (
	// DefaultKey is used whenever a run is configured without a key.
	DefaultKey = []byte("0123456789abcdef")
	// DefaultPlaintext is the fixed profiler workload.
	DefaultPlaintext = []byte("Hello World Data")
)

// Configuration controls one audit run.
type Configuration struct {
	// Rounds is the avalanche trial count. Zero yields a 0% score.
	Rounds int
	// Iterations is the profiler loop count.
	Iterations int
	Key        []byte
	Plaintext  []byte
	// The Attack fields parameterise the built-in attack simulator and are
	// ignored when the orchestrator was given its own Prober. Zero selects the
	// default.
	AttackTrials      int
	AttackThreshold   float64
	AttackInputDelta  uint16
	AttackTargetDelta uint64
}

// DefaultConfiguration returns the reference workload.
func DefaultConfiguration() Configuration {
	return Configuration{
		Rounds:            DefaultRounds,
		Iterations:        DefaultIterations,
		Key:               append([]byte(nil), DefaultKey...),
		Plaintext:         append([]byte(nil), DefaultPlaintext...),
		AttackTrials:      attack.DefaultTrials,
		AttackThreshold:   attack.DefaultThreshold,
		AttackInputDelta:  attack.DefaultInputDelta,
		AttackTargetDelta: attack.DefaultTargetDelta,
	}
}

// Validate reports configuration values no run can use.
func (c Configuration) Validate() error {
	var errs []error
	if c.Rounds < 0 {
		errs = append(errs, fmt.Errorf("rounds must not be negative, got %d", c.Rounds))
	}
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}
	if c.AttackTrials < 0 {
		errs = append(errs, fmt.Errorf("attack trials must not be negative, got %d", c.AttackTrials))
	}
	if !(c.AttackThreshold >= 0 && c.AttackThreshold <= 1) {
		errs = append(errs, fmt.Errorf("attack threshold must be in [0, 1], got %v", c.AttackThreshold))
	}
	return errors.Join(errs...)
}

// normalized fills an empty key, plaintext or attack parameter with the
// reference values.
func (c Configuration) normalized() Configuration {
	if c.AttackTrials == 0 {
		c.AttackTrials = attack.DefaultTrials
	}
	if c.AttackThreshold == 0 {
		c.AttackThreshold = attack.DefaultThreshold
	}
	if c.AttackInputDelta == 0 {
		c.AttackInputDelta = attack.DefaultInputDelta
	}
	if c.AttackTargetDelta == 0 {
		c.AttackTargetDelta = attack.DefaultTargetDelta
	}
	if len(c.Key) == 0 {
		c.Key = append([]byte(nil), DefaultKey...)
	}
	if len(c.Plaintext) == 0 {
		c.Plaintext = append([]byte(nil), DefaultPlaintext...)
	}
	return c
}
