package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/delegation"
)

// runDelegationsCmd implements `sovctl delegations`.
//
// Lists the delegations active at a point in time, for oversight. Expired
// and revoked grants are excluded; pass --all to see every record.
func runDelegationsCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("delegations", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		at         string
		showAll    bool
		jsonOutput bool
	)
	cmd.StringVar(&at, "at", "", "Evaluate active delegations at this RFC 3339 instant (default: now)")
	cmd.BoolVar(&showAll, "all", false, "List every delegation record, active or not")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	now := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: invalid --at instant: %v\n", err)
			return 2
		}
		now = parsed
	}

	records, err := delegation.LoadRegistry(cfg.DelegationPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	listed := records
	if !showAll {
		listed = delegation.NewResolver(records).Active(now)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(listed, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
		return 0
	}

	if len(listed) == 0 {
		_, _ = fmt.Fprintln(stdout, "No delegations.")
		return 0
	}
	for _, d := range listed {
		status := "active"
		if !d.Active(now) {
			status = "inactive"
		}
		_, _ = fmt.Fprintf(stdout, "%-12s %s -> %s  %s/%s  %s..%s  [%s]\n",
			d.ID, d.Principal, d.Delegate, d.Permission, d.State,
			d.ValidFrom.Format(time.RFC3339), d.ValidTo.Format(time.RFC3339), status)
	}
	return 0
}
