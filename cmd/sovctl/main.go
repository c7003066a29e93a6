// Command sovctl is the operator CLI: evaluate authority requests, verify
// audit ledgers, validate governance configuration, inspect delegations, and
// review recorded decisions.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	initLogging(stderr, cfg.LogLevel)

	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "evaluate":
		return runEvaluateCmd(cfg, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(cfg, args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(cfg, args[2:], stdout, stderr)
	case "delegations":
		return runDelegationsCmd(cfg, args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(cfg, args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func initLogging(w io.Writer, level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "sovctl — sovereignty control")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  sovctl evaluate     Evaluate an authority request and record the decision")
	_, _ = fmt.Fprintln(w, "  sovctl verify       Verify ledger hash chains")
	_, _ = fmt.Fprintln(w, "  sovctl validate     Validate policies, delegations, and identities")
	_, _ = fmt.Fprintln(w, "  sovctl delegations  List delegations active right now")
	_, _ = fmt.Fprintln(w, "  sovctl replay       Review recorded decisions and enforcement events")
	_, _ = fmt.Fprintln(w, "  sovctl help         Show this help")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Configuration comes from SOV_* environment variables; see sovctl validate.")
}
