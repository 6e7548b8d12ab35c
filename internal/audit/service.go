package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/RowanDark/cipherscore/internal/history"
	"github.com/RowanDark/cipherscore/internal/loader"
)

// Request is one invocation: a cipher selector plus an avalanche round count.
// A zero Rounds keeps the service's configured default.
type Request struct {
	Selector loader.Selector
	Rounds   int
}

// Outcome pairs the resolved cipher's display name with its report.
type Outcome struct {
	CipherName string
	Report     Report
	// RecordID is the history id of the stored run, when a recorder is set.
	RecordID string
}

// Recorder stores completed runs.
type Recorder interface {
	Save(ctx context.Context, rec history.Record) (history.Record, error)
}

// Service is the invocation boundary used by transports. Loader errors keep
// their category so callers can tell unknown ids from bad plugin source.
type Service struct {
	loader       *loader.Loader
	orchestrator *Orchestrator
	base         Configuration
	recorder     Recorder
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder stores every completed run.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// NewService wires a loader and orchestrator behind one entry point.
func NewService(l *loader.Loader, o *Orchestrator, base Configuration, opts ...ServiceOption) (*Service, error) {
	if l == nil {
		return nil, errors.New("audit service: loader is required")
	}
	if o == nil {
		o = New()
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}
	s := &Service{loader: l, orchestrator: o, base: base}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Invoke resolves the selected cipher and audits it. When the run succeeds
// but cannot be recorded, the outcome is returned together with the error.
func (s *Service) Invoke(ctx context.Context, req Request) (Outcome, error) {
	if req.Rounds < 0 {
		return Outcome{}, fmt.Errorf("rounds must not be negative, got %d", req.Rounds)
	}
	c, err := s.loader.Resolve(req.Selector)
	if err != nil {
		return Outcome{}, err
	}
	cfg := s.base
	if req.Rounds > 0 {
		cfg.Rounds = req.Rounds
	}
	rep, err := s.orchestrator.Run(ctx, c, cfg)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{CipherName: rep.CipherName, Report: rep}
	if s.recorder == nil {
		return out, nil
	}

	doc, err := rep.Document()
	if err != nil {
		return out, err
	}
	id := req.Selector.ID
	if req.Selector.Source != "" || id == "" {
		id = loader.CustomID
	}
	rec, err := s.recorder.Save(ctx, history.Record{
		ID:           rep.ID,
		CipherID:     id,
		CipherName:   rep.CipherName,
		Avalanche:    rep.AvalanchePercentage,
		LatencyMs:    rep.LatencyMs,
		PeakMemoryKb: rep.PeakMemoryKb,
		Attack:       rep.AttackClassification.String(),
		Rounds:       cfg.Rounds,
		Document:     string(doc),
		CreatedAt:    rep.StartedAt,
	})
	if err != nil {
		return out, fmt.Errorf("record audit: %w", err)
	}
	out.RecordID = rec.ID
	return out, nil
}
