package roundfn

import (
	"fmt"
	"slices"
	"strings"
)

// Capability gates a family of round-function steps.
type Capability string

const (
	CapXOR     Capability = "CAP_XOR"
	CapLogic   Capability = "CAP_LOGIC"
	CapArith   Capability = "CAP_ARITH"
	CapRotate  Capability = "CAP_ROTATE"
	CapShift   Capability = "CAP_SHIFT"
	CapPermute Capability = "CAP_PERMUTE"
)

var allowedCaps = map[Capability]struct{}{
	CapXOR:     {},
	CapLogic:   {},
	CapArith:   {},
	CapRotate:  {},
	CapShift:   {},
	CapPermute: {},
}

// AllowedCapabilities lists every capability a declaration may request.
func AllowedCapabilities() []string {
	out := make([]string, 0, len(allowedCaps))
	for k := range allowedCaps {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return out
}

const (
	DefaultMaxSourceBytes = 64 << 10
	DefaultMaxRounds      = 256
	DefaultMaxSteps       = 1 << 16
)

// Policy bounds what a plugin source may request.
type Policy struct {
	// Capabilities granted to plugins. Empty grants every known capability.
	Capabilities   []string
	MaxSourceBytes int
	MaxRounds      int
	// MaxSteps caps rounds × steps for each direction of a declaration.
	MaxSteps int
}

// DefaultPolicy grants every capability with the default limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxSourceBytes: DefaultMaxSourceBytes,
		MaxRounds:      DefaultMaxRounds,
		MaxSteps:       DefaultMaxSteps,
	}
}

// Validate reports policy entries that name unknown capabilities.
func (p Policy) Validate() error {
	for _, c := range p.Capabilities {
		if _, ok := allowedCaps[Capability(strings.ToUpper(strings.TrimSpace(c)))]; !ok {
			return fmt.Errorf("unknown capability: %s", c)
		}
	}
	return nil
}

func (p Policy) normalized() Policy {
	if p.MaxSourceBytes <= 0 {
		p.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if p.MaxRounds <= 0 {
		p.MaxRounds = DefaultMaxRounds
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = DefaultMaxSteps
	}
	return p
}

func (p Policy) permits(c Capability) bool {
	if len(p.Capabilities) == 0 {
		return true
	}
	for _, granted := range p.Capabilities {
		if Capability(strings.ToUpper(strings.TrimSpace(granted))) == c {
			return true
		}
	}
	return false
}
