// Package attack runs a bounded differential probe against a cipher. The
// probe checks whether one fixed input difference maps to one fixed output
// difference more often than chance. It is a heuristic smoke test and never
// proves a cipher secure.
package attack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RowanDark/cipherscore/internal/cipher"
)

const (
	DefaultTrials      = 5000
	DefaultThreshold   = 0.05
	DefaultInputDelta  = uint16(0x0001)
	DefaultTargetDelta = uint64(0x0002)
	defaultKeyLen      = 10
	cancelEvery        = 256
)

// ErrUnavailable reports that no probe implementation can run. Callers
// degrade the attack classification to Skipped.
var ErrUnavailable = errors.New("attack probe unavailable")

// Classification is the heuristic verdict of a probe.
type Classification int

const (
	Skipped Classification = iota
	Weak
	Strong
)

// String returns the label used in audit documents.
func (c Classification) String() string {
	switch c {
	case Weak:
		return "Weak (Simulation)"
	case Strong:
		return "Strong (Simulation)"
	default:
		return "Skipped (Lib not found)"
	}
}

// MarshalText renders the document label.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Result is the outcome of one probe.
type Result struct {
	Classification Classification `json:"classification"`
	Probability    float64        `json:"probability"`
	Hits           int            `json:"hits"`
	Trials         int            `json:"trials"`
	// PValue is the chance of at least Hits matches if the output difference
	// were uniform over 16 bits. Informational only.
	PValue float64 `json:"p_value"`
}

// Prober is the collaborator the orchestrator consults for a classification.
type Prober interface {
	Probe(ctx context.Context, c cipher.Cipher) (Result, error)
}

// Simulator is the built-in differential Prober.
type Simulator struct {
	trials    int
	threshold float64
	input     uint16
	target    uint64
	key       []byte
	seed      uint64
	seeded    bool
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithTrials sets the number of plaintext pairs.
func WithTrials(n int) Option {
	return func(s *Simulator) { s.trials = n }
}

// WithThreshold sets the hit probability above which a cipher is Weak.
func WithThreshold(p float64) Option {
	return func(s *Simulator) { s.threshold = p }
}

// WithInputDelta sets the plaintext difference.
func WithInputDelta(d uint16) Option {
	return func(s *Simulator) { s.input = d }
}

// WithTargetDelta sets the output difference counted as a hit.
func WithTargetDelta(d uint64) Option {
	return func(s *Simulator) { s.target = d }
}

// WithKey replaces the dummy key.
func WithKey(key []byte) Option {
	return func(s *Simulator) { s.key = append([]byte(nil), key...) }
}

// WithSeed makes plaintext selection reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = seed
		s.seeded = true
	}
}

// New constructs a Simulator with the default probe parameters.
func New(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		trials:    DefaultTrials,
		threshold: DefaultThreshold,
		input:     DefaultInputDelta,
		target:    DefaultTargetDelta,
		key:       make([]byte, defaultKeyLen),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.trials <= 0 {
		return nil, fmt.Errorf("attack: trials must be positive, got %d", s.trials)
	}
	if !(s.threshold > 0 && s.threshold <= 1) {
		return nil, fmt.Errorf("attack: threshold must be in (0, 1], got %v", s.threshold)
	}
	if s.input == 0 {
		return nil, errors.New("attack: input delta must be non-zero")
	}
	return s, nil
}

// Probe encrypts trials pairs (p, p^delta) of 16-bit big-endian plaintexts
// and counts how often the ciphertext difference equals the target.
func (s *Simulator) Probe(ctx context.Context, c cipher.Cipher) (Result, error) {
	if s == nil {
		return Result{Classification: Skipped}, ErrUnavailable
	}
	if c == nil {
		return Result{}, errors.New("attack: nil cipher")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	g := cipher.Guard(c)
	rng := s.rng()

	var p1, p2 [2]byte
	hits := 0
	for i := range s.trials {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		v := uint16(rng.Uint32())
		binary.BigEndian.PutUint16(p1[:], v)
		binary.BigEndian.PutUint16(p2[:], v^s.input)

		c1, err := g.Encrypt(p1[:], s.key)
		if err != nil {
			return Result{}, err
		}
		c2, err := g.Encrypt(p2[:], s.key)
		if err != nil {
			return Result{}, err
		}
		if differenceEquals(c1, c2, s.target) {
			hits++
		}
	}

	res := Result{
		Hits:        hits,
		Trials:      s.trials,
		Probability: float64(hits) / float64(s.trials),
		PValue:      upperTail(s.trials, hits),
	}
	res.Classification = Strong
	if res.Probability > s.threshold {
		res.Classification = Weak
	}
	return res, nil
}

func (s *Simulator) rng() *rand.Rand {
	seed := s.seed
	if !s.seeded {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// differenceEquals reports whether c1 XOR c2, right-aligned and read as a
// big-endian integer, equals target.
func differenceEquals(c1, c2 []byte, target uint64) bool {
	n := max(len(c1), len(c2))
	for i := range n {
		// i counts bytes from the least significant end.
		d := byteFromEnd(c1, i) ^ byteFromEnd(c2, i)
		var want byte
		if i < 8 {
			want = byte(target >> (8 * i))
		}
		if d != want {
			return false
		}
	}
	// Target bytes beyond the ciphertext width cannot be matched.
	return n >= 8 || target>>(8*n) == 0
}

func byteFromEnd(b []byte, i int) byte {
	if i >= len(b) {
		return 0
	}
	return b[len(b)-1-i]
}

// upperTail returns P(X >= hits) for X ~ Binomial(trials, 2^-16).
func upperTail(trials, hits int) float64 {
	if hits <= 0 {
		return 1
	}
	b := distuv.Binomial{N: float64(trials), P: 1.0 / 65536}
	p := 1 - b.CDF(float64(hits-1))
	return math.Max(0, math.Min(1, p))
}
