package perf

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/RowanDark/cipherscore/internal/cipher"
)

const (
	heapObjectsMetric  = "/memory/classes/heap/objects:bytes"
	allocBytesMetric   = "/gc/heap/allocs:bytes"
	allocObjectsMetric = "/gc/heap/allocs:objects"

	sampleEvery = 64
	cancelEvery = 256
)

// measureMu serialises profiling windows. Heap and CPU counters are process
// wide, so two overlapping windows would observe each other's allocations.
var measureMu sync.Mutex

// Measurement is the outcome of one profiling window.
type Measurement struct {
	Iterations   int           `json:"iterations"`
	Duration     time.Duration `json:"duration"`
	LatencyMs    float64       `json:"latency_ms"`
	PeakMemoryKb float64       `json:"peak_memory_kb"`
	AllocatedKb  float64       `json:"allocated_kb"`
	AllocsPerOp  float64       `json:"allocs_per_op"`
	CPUSeconds   float64       `json:"cpu_seconds"`
	PeakRSSKb    float64       `json:"peak_rss_kb"`
}

// Profiler measures encrypt latency and working memory of a cipher under a
// fixed workload.
type Profiler struct {
	now func() time.Time
}

// NewProfiler returns a profiler using the monotonic wall clock.
func NewProfiler() *Profiler {
	return &Profiler{now: time.Now}
}

// Measure invokes Encrypt(plaintext, key) exactly iterations times and reports
// the amortised latency together with the peak live heap growth observed
// during the window.
func (p *Profiler) Measure(ctx context.Context, c cipher.Cipher, plaintext, key []byte, iterations int) (Measurement, error) {
	if c == nil {
		return Measurement{}, errors.New("profile: cipher is required")
	}
	if iterations <= 0 {
		return Measurement{}, fmt.Errorf("profile: iterations must be positive, got %d", iterations)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	now := time.Now
	if p != nil && p.now != nil {
		now = p.now
	}
	guarded := cipher.Guard(c)

	measureMu.Lock()
	defer measureMu.Unlock()

	runtime.GC()
	heap := []metrics.Sample{{Name: heapObjectsMetric}}
	allocs := []metrics.Sample{{Name: allocBytesMetric}, {Name: allocObjectsMetric}}
	metrics.Read(heap)
	metrics.Read(allocs)
	baseline := sampleUint(heap[0])
	allocBytesStart := sampleUint(allocs[0])
	allocObjectsStart := sampleUint(allocs[1])
	cpuStart := readCPUSeconds()

	var peak uint64
	observe := func() {
		metrics.Read(heap)
		if v := sampleUint(heap[0]); v > baseline && v-baseline > peak {
			peak = v - baseline
		}
	}

	start := now()
	for i := 0; i < iterations; i++ {
		if i%cancelEvery == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return Measurement{}, err
			}
		}
		if _, err := guarded.Encrypt(plaintext, key); err != nil {
			return Measurement{}, err
		}
		if i%sampleEvery == 0 {
			observe()
		}
	}
	elapsed := now().Sub(start)
	observe()

	metrics.Read(allocs)
	cpuEnd := readCPUSeconds()
	allocBytes := safeDifference(float64(sampleUint(allocs[0])), float64(allocBytesStart))
	allocObjects := safeDifference(float64(sampleUint(allocs[1])), float64(allocObjectsStart))

	return Measurement{
		Iterations:   iterations,
		Duration:     elapsed,
		LatencyMs:    durationToMillis(elapsed) / float64(iterations),
		PeakMemoryKb: float64(peak) / 1024,
		AllocatedKb:  allocBytes / 1024,
		AllocsPerOp:  safeDivideFloat(allocObjects, float64(iterations)),
		CPUSeconds:   safeDifference(cpuEnd, cpuStart),
		PeakRSSKb:    peakRSSKb(),
	}, nil
}

func sampleUint(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64()
}

func readCPUSeconds() float64 {
	names := []string{"/process/cpu-seconds", "/cpu/classes/total:cpu-seconds"}
	samples := make([]metrics.Sample, len(names))
	for i, name := range names {
		samples[i].Name = name
	}
	metrics.Read(samples)
	for _, sample := range samples {
		if sample.Value.Kind() != metrics.KindFloat64 {
			continue
		}
		if v := sample.Value.Float64(); v > 0 {
			return v
		}
	}
	return 0
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

func safeDivideFloat(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

func safeDifference(end, start float64) float64 {
	if end <= 0 {
		return 0
	}
	if start <= 0 {
		return end
	}
	if end < start {
		return 0
	}
	return end - start
}
