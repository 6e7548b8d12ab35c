package roundfn

import (
	"errors"
	"fmt"
)

// ErrNoConformingType is returned when a source declares no type with both
// encrypt and decrypt step lists.
var ErrNoConformingType = errors.New("no conforming type found")

// SourceError reports source that could not be compiled.
type SourceError struct {
	Type    string
	Line    int
	Message string
}

func (e *SourceError) Error() string {
	switch {
	case e.Type != "" && e.Line > 0:
		return fmt.Sprintf("line %d: type %s: %s", e.Line, e.Type, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case e.Type != "":
		return fmt.Sprintf("type %s: %s", e.Type, e.Message)
	default:
		return e.Message
	}
}

// CapabilityError reports a step or declaration that needs a capability it
// was not granted.
type CapabilityError struct {
	Type       string
	Capability Capability
	// Denied is set when the loading policy refused the capability, as
	// opposed to a step using a capability its type never declared.
	Denied bool
}

func (e *CapabilityError) Error() string {
	if e.Denied {
		return fmt.Sprintf("type %s: capability %s denied by policy", e.Type, e.Capability)
	}
	return fmt.Sprintf("type %s: step requires undeclared capability %s", e.Type, e.Capability)
}
