package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/RowanDark/cipherscore/internal/plugins/integrity"
)

// runHash prints allowlist lines for the given plugin sources.
func runHash(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: cipherscore hash <plugin.yaml>...")
		return 2
	}
	status := 0
	for _, path := range args {
		digest, err := integrity.HashFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%s %s\n", digest, filepath.Base(path))
	}
	return status
}
