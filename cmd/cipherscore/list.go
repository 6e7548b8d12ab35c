package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/RowanDark/cipherscore/internal/cipher/builtin"
	"github.com/RowanDark/cipherscore/internal/loader"
)

func runList(stdout io.Writer) int {
	writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "ID\tName\tDescription\n")
	for _, e := range builtin.NewRegistry().List() {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", e.ID, e.DisplayName, e.Description)
	}
	fmt.Fprintf(writer, "%s\t%s\t%s\n", loader.CustomID, "Plugin source", "round-function YAML passed with -plugin")
	_ = writer.Flush()
	return 0
}
