package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
)

// runVerifyCmd implements `sovctl verify`.
//
// Recomputes every chained hash in the decision and enforcement ledgers and
// reports the first break. Verification is read-only; a broken chain is
// reported, never repaired.
//
// Exit codes:
//
//	0 = all chains intact
//	1 = integrity violation found
//	2 = runtime error
func runVerifyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		ledgerPath string
		jsonOutput bool
	)
	cmd.StringVar(&ledgerPath, "ledger", "", "Verify a single ledger file instead of the configured pair")
	cmd.BoolVar(&jsonOutput, "json", false, "Output reports as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	paths := []string{cfg.DecisionLedgerPath, cfg.EnforcementLedgerPath}
	if ledgerPath != "" {
		paths = []string{ledgerPath}
	}

	broken := false
	type namedReport struct {
		Ledger string        `json:"ledger"`
		Report ledger.Report `json:"report"`
	}
	var reports []namedReport

	for _, path := range paths {
		report, err := ledger.Verify(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: verify %s: %v\n", path, err)
			return 2
		}
		if !report.Valid {
			broken = true
		}
		reports = append(reports, namedReport{Ledger: path, Report: report})
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(reports, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
	} else {
		for _, r := range reports {
			if r.Report.Valid {
				_, _ = fmt.Fprintf(stdout, "OK      %s (%d entries, %d hashed)\n",
					r.Ledger, r.Report.TotalEntries, r.Report.HashedEntries)
				continue
			}
			_, _ = fmt.Fprintf(stdout, "BROKEN  %s: first break at entry %d\n",
				r.Ledger, r.Report.FirstBrokenIndex)
			for _, e := range r.Report.Errors {
				_, _ = fmt.Fprintf(stdout, "        entry %d: %s\n", e.Index, e.Message)
			}
		}
	}

	if broken {
		return 1
	}
	return 0
}
