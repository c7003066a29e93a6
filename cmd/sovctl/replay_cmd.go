package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/replay"
)

// runReplayCmd implements `sovctl replay <list|explain|correlate|index>`.
//
// Read-only review of the decision ledger: list recorded decisions with
// their chain status, explain a single decision, correlate a decision with
// its enforcement events, or rebuild the SQLite lookup index.
func runReplayCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: sovctl replay <list|explain|correlate|index>")
		return 2
	}

	reviewer := replay.NewReviewer(cfg.DecisionLedgerPath, cfg.EnforcementLedgerPath)

	switch args[0] {
	case "list":
		return runReplayList(reviewer, args[1:], stdout, stderr)
	case "explain":
		return runReplayExplain(reviewer, args[1:], stdout, stderr)
	case "correlate":
		return runReplayCorrelate(reviewer, args[1:], stdout, stderr)
	case "index":
		return runReplayIndex(cfg, reviewer, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown replay subcommand: %s\n", args[0])
		return 2
	}
}

func runReplayList(reviewer *replay.Reviewer, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay list", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	views, report, err := reviewer.Decisions()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(views, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
	} else {
		for _, v := range views {
			_, _ = fmt.Fprintf(stdout, "%4d  %-7s %-28s %-24s %-30s %s\n",
				v.Index, v.Status, v.Record.Decision, v.Record.IdentityLabel,
				v.Record.Permission, v.Record.CorrelationID)
		}
		_, _ = fmt.Fprintf(stdout, "%d entries, %d hashed, chain %s\n",
			report.TotalEntries, report.HashedEntries, chainWord(report.Valid))
	}

	if !report.Valid {
		return 1
	}
	return 0
}

func runReplayExplain(reviewer *replay.Reviewer, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay explain", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	index := cmd.Int("index", -1, "Ledger index of the decision to explain (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *index < 0 {
		_, _ = fmt.Fprintln(stderr, "Error: --index is required")
		return 2
	}

	view, err := reviewer.Explain(*index)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))
	return 0
}

func runReplayCorrelate(reviewer *replay.Reviewer, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay correlate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	id := cmd.String("id", "", "Decision correlation id (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *id == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --id is required")
		return 2
	}

	correlation, err := reviewer.Correlate(*id)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	out, _ := json.MarshalIndent(correlation, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))
	return 0
}

func runReplayIndex(cfg *config.Config, reviewer *replay.Reviewer, stdout, stderr io.Writer) int {
	views, _, err := reviewer.Decisions()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	index, err := replay.OpenIndex(cfg.IndexPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = index.Close() }()

	if err := index.Rebuild(context.Background(), views); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Indexed %d decisions into %s\n", len(views), cfg.IndexPath)
	return 0
}

func chainWord(valid bool) string {
	if valid {
		return "intact"
	}
	return "BROKEN"
}
