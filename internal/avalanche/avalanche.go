// Package avalanche measures diffusion by flipping single plaintext bits and
// counting the ciphertext bits that change. An ideal cipher changes about
// half of its output bits for every single-bit input change.
package avalanche

import (
	"context"
	"errors"
	"math"
	"math/bits"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/RowanDark/cipherscore/internal/cipher"
)

// DefaultProbeWidth is the plaintext width in bytes used for every trial.
const DefaultProbeWidth = 8

// Analyzer runs bit-flip trials against a cipher.
type Analyzer struct {
	seed   uint64
	seeded bool
	width  int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSeed makes trials reproducible.
func WithSeed(seed uint64) Option {
	return func(a *Analyzer) {
		a.seed = seed
		a.seeded = true
	}
}

// WithProbeWidth overrides the plaintext width in bytes.
func WithProbeWidth(width int) Option {
	return func(a *Analyzer) {
		if width > 0 {
			a.width = width
		}
	}
}

// New constructs an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{width: DefaultProbeWidth}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result summarises one avalanche run. Ratios are per-trial fractions of
// output bits that changed.
type Result struct {
	Trials     int     `json:"trials"`
	Percentage float64 `json:"percentage"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	// OutputBits is the widest ciphertext observed, in bits.
	OutputBits int `json:"output_bits"`
	// FlipRates holds, per output bit position, the fraction of trials in
	// which that bit changed.
	FlipRates []float64 `json:"flip_rates,omitempty"`
	// WorstBias is the largest distance of any flip rate from 0.5.
	WorstBias float64 `json:"worst_bias"`
	WorstBit  int     `json:"worst_bit"`
}

// Measure returns the avalanche percentage in [0, 100].
func (a *Analyzer) Measure(ctx context.Context, c cipher.Cipher, key []byte, rounds int) (float64, error) {
	res, err := a.Profile(ctx, c, key, rounds)
	if err != nil {
		return 0, err
	}
	return res.Percentage, nil
}

// Profile runs rounds trials and returns the full distribution.
func (a *Analyzer) Profile(ctx context.Context, c cipher.Cipher, key []byte, rounds int) (Result, error) {
	if c == nil {
		return Result{}, errors.New("avalanche: nil cipher")
	}
	if rounds < 0 {
		return Result{}, errors.New("avalanche: rounds must not be negative")
	}
	if rounds == 0 {
		return Result{}, nil
	}

	g := cipher.Guard(c)
	rng := a.rng()
	width := a.width

	var (
		acc            running
		flips, present []int
	)
	p1 := make([]byte, width)
	p2 := make([]byte, width)

	for range rounds {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for i := range p1 {
			p1[i] = byte(rng.Uint32())
		}
		copy(p2, p1)
		// Bit 0 is the least significant bit of the big-endian plaintext.
		idx := rng.IntN(width * 8)
		p2[width-1-idx/8] ^= 1 << (idx % 8)

		c1, err := g.Encrypt(p1, key)
		if err != nil {
			return Result{}, err
		}
		c2, err := g.Encrypt(p2, key)
		if err != nil {
			return Result{}, err
		}

		n := max(len(c1), len(c2))
		if n == 0 {
			acc.add(0)
			continue
		}
		if need := n * 8; need > len(flips) {
			flips = append(flips, make([]int, need-len(flips))...)
			present = append(present, make([]int, need-len(present))...)
		}
		distance := 0
		for i := range n {
			d := byteAt(c1, i) ^ byteAt(c2, i)
			distance += bits.OnesCount8(d)
			for b := range 8 {
				present[i*8+b]++
				if d&(0x80>>b) != 0 {
					flips[i*8+b]++
				}
			}
		}
		acc.add(float64(distance) / float64(8*n))
	}

	return summarise(acc, flips, present), nil
}

// running keeps Welford statistics over per-trial ratios so memory does not
// grow with the trial count.
type running struct {
	n        int
	sum      float64
	mean     float64
	m2       float64
	min, max float64
}

func (r *running) add(x float64) {
	r.n++
	r.sum += x
	if r.n == 1 {
		r.min, r.max = x, x
	} else {
		r.min = math.Min(r.min, x)
		r.max = math.Max(r.max, x)
	}
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

// stdDev is the unbiased sample standard deviation.
func (r *running) stdDev() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.n-1))
}

func summarise(acc running, flips, present []int) Result {
	res := Result{
		Trials:     acc.n,
		OutputBits: len(flips),
		Min:        acc.min,
		Max:        acc.max,
		Mean:       acc.mean,
		StdDev:     acc.stdDev(),
	}
	if acc.n > 0 {
		res.Percentage = acc.sum / float64(acc.n) * 100
	}

	if len(flips) > 0 {
		res.FlipRates = make([]float64, len(flips))
		biases := make([]float64, len(flips))
		for i := range flips {
			if present[i] > 0 {
				res.FlipRates[i] = float64(flips[i]) / float64(present[i])
			}
			biases[i] = math.Abs(res.FlipRates[i] - 0.5)
		}
		res.WorstBit = floats.MaxIdx(biases)
		res.WorstBias = biases[res.WorstBit]
	}
	return res
}

func (a *Analyzer) rng() *rand.Rand {
	seed := a.seed
	if !a.seeded {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func byteAt(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}
