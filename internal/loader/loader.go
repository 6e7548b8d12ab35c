// Package loader resolves cipher handles from the built-in registry or from
// plugin source compiled by the round-function interpreter.
package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RowanDark/cipherscore/internal/cipher"
	"github.com/RowanDark/cipherscore/internal/logging"
	"github.com/RowanDark/cipherscore/internal/observability/metrics"
	"github.com/RowanDark/cipherscore/internal/plugins/integrity"
	"github.com/RowanDark/cipherscore/internal/plugins/roundfn"
)

// CustomID selects plugin source rather than a built-in cipher.
const CustomID = "custom"

const (
	sourceStatic = "static"
	sourcePlugin = "plugin"
)

// Selector names the cipher to load. A non-empty Source takes precedence
// over ID.
type Selector struct {
	ID     string
	Source string
}

// Loader resolves selectors into guarded cipher handles.
type Loader struct {
	registry  *cipher.Registry
	policy    roundfn.Policy
	allowlist *integrity.Allowlist
	journal   *logging.Journal
}

// Option configures a Loader.
type Option func(*Loader)

// WithPolicy sets the limits applied to plugin source.
func WithPolicy(p roundfn.Policy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithAllowlist restricts plugin source to allowlisted digests.
func WithAllowlist(a *integrity.Allowlist) Option {
	return func(l *Loader) {
		l.allowlist = a
	}
}

// WithJournal records load decisions to j.
func WithJournal(j *logging.Journal) Option {
	return func(l *Loader) {
		l.journal = j.Component("loader")
	}
}

// New constructs a loader over reg.
func New(reg *cipher.Registry, opts ...Option) (*Loader, error) {
	if reg == nil {
		return nil, errors.New("cipher registry is required")
	}
	l := &Loader{registry: reg, policy: roundfn.DefaultPolicy()}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.policy.Validate(); err != nil {
		return nil, fmt.Errorf("plugin policy: %w", err)
	}
	return l, nil
}

// Resolve loads the cipher named by sel.
func (l *Loader) Resolve(sel Selector) (cipher.Cipher, error) {
	if strings.TrimSpace(sel.Source) != "" {
		return l.ResolveFromSource(sel.Source)
	}
	if sel.ID == CustomID {
		err := &cipher.LoadError{Reason: "plugin source is required"}
		l.reject(sourcePlugin, "", err)
		return nil, err
	}
	return l.ResolveStatic(sel.ID)
}

// ResolveStatic instantiates the built-in cipher registered under id.
func (l *Loader) ResolveStatic(id string) (cipher.Cipher, error) {
	c, err := l.registry.Resolve(id)
	if err != nil {
		l.reject(sourceStatic, "", err)
		return nil, err
	}
	metrics.RecordCipherLoad(sourceStatic, "success")
	_ = l.journal.Record(logging.Source{Kind: sourceStatic}.Loaded(c.Name(), map[string]any{"id": id}))
	return cipher.Guard(c), nil
}

// ResolveFromSource compiles plugin source in a fresh scope and instantiates
// its first conforming type.
func (l *Loader) ResolveFromSource(src string) (c cipher.Cipher, err error) {
	digest := integrity.HashSource(src)
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = &cipher.CompileError{Message: "evaluate plugin source", Err: fmt.Errorf("panic: %v", r)}
			l.reject(sourcePlugin, digest, err)
		}
	}()

	if l.allowlist != nil {
		if _, verr := l.allowlist.Verify(src); verr != nil {
			err = &cipher.LoadError{Reason: verr.Error()}
			l.reject(sourcePlugin, digest, err)
			return nil, err
		}
	}

	prog, cerr := roundfn.Compile(src, l.policy)
	if cerr != nil {
		var capErr *roundfn.CapabilityError
		if errors.As(cerr, &capErr) && capErr.Denied {
			src := logging.Source{Kind: sourcePlugin, Digest: digest}
			_ = l.journal.Record(src.CapabilityDenied(capErr.Type, string(capErr.Capability), cerr))
		}
		err = &cipher.CompileError{Message: "evaluate plugin source", Err: cerr}
		l.reject(sourcePlugin, digest, err)
		return nil, err
	}

	typ, ferr := prog.First()
	if ferr != nil {
		err = &cipher.LoadError{Reason: ferr.Error()}
		l.reject(sourcePlugin, digest, err)
		return nil, err
	}

	c = roundfn.New(typ)
	metrics.RecordCipherLoad(sourcePlugin, "success")
	_ = l.journal.Record(logging.Source{Kind: sourcePlugin, Digest: digest}.Loaded(c.Name(), map[string]any{
		"type":         typ.Ident,
		"capabilities": capabilityNames(typ.Capabilities),
		"skipped":      len(prog.Skipped),
	}))
	return cipher.Guard(c), nil
}

func (l *Loader) reject(source, digest string, err error) {
	category := cipher.CategoryOf(err)
	metrics.RecordCipherLoad(source, string(category))
	_ = l.journal.Record(logging.Source{Kind: source, Digest: digest}.Rejected(string(category), err))
}

func capabilityNames(caps []roundfn.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
