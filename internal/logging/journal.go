package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Destination opens one output of a Journal. The closer may be nil.
type Destination func() (io.Writer, io.Closer, error)

// Writer sends events to w. The journal never closes it.
func Writer(w io.Writer) Destination {
	return func() (io.Writer, io.Closer, error) {
		if w == nil {
			return nil, nil, errors.New("nil writer")
		}
		return w, nil, nil
	}
}

// Stdout sends events to standard output.
func Stdout() Destination {
	return Writer(os.Stdout)
}

// File appends events to path, creating parent directories as needed.
func File(path string) Destination {
	return func() (io.Writer, io.Closer, error) {
		if strings.TrimSpace(path) == "" {
			return nil, nil, errors.New("empty audit log path")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
}

// sink is shared by a journal and the component views derived from it.
type sink struct {
	mu      sync.Mutex
	enc     *json.Encoder
	closers []io.Closer
	now     func() time.Time
}

// Journal appends audit events as JSON lines. A nil *Journal discards
// everything, so components can hold an optional journal without guarding
// each call.
type Journal struct {
	component string
	sink      *sink
	root      bool
}

// Open builds a journal writing to every destination.
func Open(component string, dests ...Destination) (*Journal, error) {
	if len(dests) == 0 {
		return nil, errors.New("audit journal needs at least one destination")
	}
	s := &sink{now: time.Now}
	writers := make([]io.Writer, 0, len(dests))
	for i, open := range dests {
		w, c, err := open()
		if err != nil {
			s.close()
			return nil, fmt.Errorf("audit destination %d: %w", i, err)
		}
		writers = append(writers, w)
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
	s.enc = json.NewEncoder(io.MultiWriter(writers...))
	s.enc.SetEscapeHTML(false)
	return &Journal{component: component, sink: s, root: true}, nil
}

// MustOpen is Open that panics on error.
func MustOpen(component string, dests ...Destination) *Journal {
	j, err := Open(component, dests...)
	if err != nil {
		panic(err)
	}
	return j
}

// Component returns a view of j that stamps events with name.
func (j *Journal) Component(name string) *Journal {
	if j == nil {
		return nil
	}
	return &Journal{component: name, sink: j.sink}
}

// Record scrubs and appends ev. The event's component defaults to the
// journal's.
func (j *Journal) Record(ev AuditEvent) error {
	if j == nil {
		return nil
	}
	if ev.Component == "" {
		ev.Component = j.component
	}
	j.sink.mu.Lock()
	defer j.sink.mu.Unlock()
	return j.sink.enc.Encode(ev.scrubbed(j.sink.now))
}

// Close releases files opened by Open. Component views do not own them.
func (j *Journal) Close() error {
	if j == nil || !j.root {
		return nil
	}
	j.sink.mu.Lock()
	defer j.sink.mu.Unlock()
	return j.sink.close()
}

func (s *sink) close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
