package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/authority"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/delegation"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// runValidateCmd implements `sovctl validate`.
//
// Loads the policy bundle, delegation registry, and identity directory, and
// reports every structural problem without evaluating anything.
//
// Exit codes:
//
//	0 = configuration valid
//	1 = configuration invalid
//	2 = runtime error
func runValidateCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	invalid := false

	store, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		invalid = reportConfigProblem(stderr, "policies", cfg.PolicyPath, err) || invalid
	} else {
		_, _ = fmt.Fprintf(stdout, "policies     OK  %s (%d policies, version %s)\n",
			cfg.PolicyPath, store.Len(), store.Version())
	}

	delegations, err := delegation.LoadRegistry(cfg.DelegationPath)
	if err != nil {
		invalid = reportConfigProblem(stderr, "delegations", cfg.DelegationPath, err) || invalid
	} else {
		_, _ = fmt.Fprintf(stdout, "delegations  OK  %s (%d records)\n",
			cfg.DelegationPath, len(delegations))
	}

	directory, err := authority.LoadDirectory(cfg.IdentityPath)
	if err != nil {
		invalid = reportConfigProblem(stderr, "identities", cfg.IdentityPath, err) || invalid
	} else {
		_, _ = fmt.Fprintf(stdout, "identities   OK  %s (%d identities)\n",
			cfg.IdentityPath, len(directory))
	}

	if invalid {
		return 1
	}
	return 0
}

// reportConfigProblem prints the problem and reports whether it was a
// configuration error (as opposed to a runtime failure, which still counts
// as invalid here: an unreadable file cannot govern anything).
func reportConfigProblem(stderr io.Writer, what, path string, err error) bool {
	var configErr *policy.ConfigError
	if errors.As(err, &configErr) {
		_, _ = fmt.Fprintf(stderr, "%s: %s:\n", what, path)
		for _, p := range configErr.Problems {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", p)
		}
		return true
	}
	_, _ = fmt.Fprintf(stderr, "%s: %s: %v\n", what, path, err)
	return true
}
