//go:build linux

package perf

import "golang.org/x/sys/unix"

// peakRSSKb returns the process high-water resident set size. Linux reports
// ru_maxrss in kilobytes.
func peakRSSKb() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return float64(ru.Maxrss)
}
