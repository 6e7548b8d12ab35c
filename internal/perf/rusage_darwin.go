//go:build darwin

package perf

import "golang.org/x/sys/unix"

// Darwin reports ru_maxrss in bytes.
func peakRSSKb() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return float64(ru.Maxrss) / 1024
}
