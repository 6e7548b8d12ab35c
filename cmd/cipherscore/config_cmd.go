package main

import (
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/cipherscore/internal/config"
	"github.com/RowanDark/cipherscore/internal/redact"
)

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "config subcommand required")
		return 2
	}

	switch args[0] {
	case "print":
		fs := flag.NewFlagSet("config print", flag.ContinueOnError)
		fs.SetOutput(stderr)
		configPath := fs.String("config", "", "explicit configuration file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
		if err := printResolvedConfig(stdout, cfg); err != nil {
			fmt.Fprintf(stderr, "print config: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

// printResolvedConfig writes cfg as YAML with key material masked.
func printResolvedConfig(out io.Writer, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, redact.String(string(data)))
	return err
}
