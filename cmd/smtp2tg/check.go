package main

import (
	"fmt"
	"os"

	"github.com/kworr/smtp2tg/internal/config"
	"github.com/kworr/smtp2tg/internal/route"
)

// runCheck loads and validates the configuration, builds the routing table,
// and exits non-zero on the first problem. Useful before a reload.
func runCheck() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	table, err := route.FromConfig(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid routing table: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: ok (%d recipients, domains %v, unknown=%s)\n",
		flags.ConfigPath, len(cfg.Recipients), table.Domains(), cfg.Unknown)
}
