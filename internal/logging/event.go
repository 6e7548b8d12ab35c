// Package logging keeps the audit trail of cipher runs and plugin loads as
// JSON lines.
package logging

import (
	"time"

	"github.com/RowanDark/cipherscore/internal/redact"
)

type EventType string

const (
	EventAuditStarted     EventType = "audit_started"
	EventStageCompleted   EventType = "stage_completed"
	EventAuditCompleted   EventType = "audit_completed"
	EventAuditFailed      EventType = "audit_failed"
	EventProbeSkipped     EventType = "probe_skipped"
	EventPluginLoad       EventType = "plugin_load"
	EventPluginRejected   EventType = "plugin_rejected"
	EventCapabilityDenied EventType = "capability_denied"
)

type Decision string

const (
	DecisionInfo  Decision = "info"
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	RunID     string         `json:"run_id,omitempty"`
	Cipher    string         `json:"cipher,omitempty"`
	EventType EventType      `json:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Decision  Decision       `json:"decision,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// scrubbed returns a copy safe to persist: UTC timestamp, and no key
// material left in the reason or metadata.
func (e AuditEvent) scrubbed(now func() time.Time) AuditEvent {
	if e.Timestamp.IsZero() {
		e.Timestamp = now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Reason = redact.String(e.Reason)
	if len(e.Metadata) > 0 {
		e.Metadata = redact.Map(e.Metadata)
	}
	return e
}

// Run builds the events of one audit run.
type Run struct {
	ID     string
	Cipher string
}

func (r Run) event(t EventType, d Decision, meta map[string]any) AuditEvent {
	return AuditEvent{RunID: r.ID, Cipher: r.Cipher, EventType: t, Decision: d, Metadata: meta}
}

// Started describes the workload. Only the key length is logged.
func (r Run) Started(rounds, iterations, attackTrials int, key []byte) AuditEvent {
	return r.event(EventAuditStarted, DecisionInfo, map[string]any{
		"rounds":        rounds,
		"iterations":    iterations,
		"attack_trials": attackTrials,
		"key_bytes":     len(key),
	})
}

// StageCompleted carries the stage summary fields plus its duration.
func (r Run) StageCompleted(stage string, elapsed time.Duration, fields map[string]any) AuditEvent {
	meta := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		meta[k] = v
	}
	meta["stage"] = stage
	meta["duration_ms"] = millis(elapsed)
	return r.event(EventStageCompleted, DecisionInfo, meta)
}

// AttackSkipped records that no attack collaborator was available.
func (r Run) AttackSkipped(cause error) AuditEvent {
	ev := r.event(EventProbeSkipped, DecisionInfo, nil)
	ev.Reason = errText(cause)
	return ev
}

// Completed carries the report fields of a finished run.
func (r Run) Completed(elapsed time.Duration, fields map[string]any) AuditEvent {
	meta := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		meta[k] = v
	}
	meta["duration_ms"] = millis(elapsed)
	return r.event(EventAuditCompleted, DecisionAllow, meta)
}

// Failed records an aborted run and its error category.
func (r Run) Failed(category string, cause error) AuditEvent {
	ev := r.event(EventAuditFailed, DecisionDeny, map[string]any{"category": category})
	ev.Reason = errText(cause)
	return ev
}

// Source builds the events of one cipher resolution. Digest is the full
// SHA-256 of plugin source, or empty for built-in ciphers.
type Source struct {
	Kind   string
	Digest string
}

func (s Source) meta(extra map[string]any) map[string]any {
	meta := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		meta[k] = v
	}
	meta["source"] = s.Kind
	if s.Digest != "" {
		meta["digest"] = ShortDigest(s.Digest)
	}
	return meta
}

// Loaded records an accepted cipher.
func (s Source) Loaded(cipher string, fields map[string]any) AuditEvent {
	return AuditEvent{EventType: EventPluginLoad, Decision: DecisionAllow, Cipher: cipher, Metadata: s.meta(fields)}
}

// Rejected records a failed resolution under its error category.
func (s Source) Rejected(category string, cause error) AuditEvent {
	return AuditEvent{
		EventType: EventPluginRejected,
		Decision:  DecisionDeny,
		Reason:    errText(cause),
		Metadata:  s.meta(map[string]any{"category": category}),
	}
}

// CapabilityDenied records a plugin type that asked for a capability outside
// the policy.
func (s Source) CapabilityDenied(typ, capability string, cause error) AuditEvent {
	return AuditEvent{
		EventType: EventCapabilityDenied,
		Decision:  DecisionDeny,
		Reason:    errText(cause),
		Metadata:  s.meta(map[string]any{"type": typ, "capability": capability}),
	}
}

// ShortDigest returns the leading 16 hex characters of d.
func ShortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
