package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/audit"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/authority"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/config"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/delegation"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/enforce"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// runEvaluateCmd implements `sovctl evaluate`.
//
// Evaluates one authority request against the loaded policy bundle and
// delegation registry, records the decision in the decision ledger, and
// optionally dispatches declared enforcement actions.
//
// Exit codes:
//
//	0 = ALLOW
//	1 = DENY or REQUIRE_ADDITIONAL_APPROVAL
//	2 = invalid request or runtime error (nothing recorded)
func runEvaluateCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		label        string
		role         string
		permission   string
		state        string
		scenarioPath string
		withEnforce  bool
		dryRun       bool
	)
	cmd.StringVar(&label, "identity", "", "Requesting identity label")
	cmd.StringVar(&role, "role", "", "Requesting identity role")
	cmd.StringVar(&permission, "permission", "", "Requested permission")
	cmd.StringVar(&state, "state", "", "System state (NORMAL or CRISIS)")
	cmd.StringVar(&scenarioPath, "scenario", "", "Scenario YAML file (overrides the flags above)")
	cmd.BoolVar(&withEnforce, "enforce", false, "Dispatch declared actions when the decision is ALLOW")
	cmd.BoolVar(&dryRun, "dry-run", false, "Compute enforcement effects without applying them")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var actions []enforce.Action
	if scenarioPath != "" {
		scenario, err := config.LoadScenario(scenarioPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		label = scenario.Identity.Label
		role = scenario.Identity.Role
		permission = scenario.Permission
		state = scenario.State
		actions = scenario.EnforceActions()
		if scenario.DryRun {
			dryRun = true
		}
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	identity := authority.Identity{Label: label, Role: role}
	decision, err := engine.Evaluate(identity, permission, policy.SystemState(state), time.Now())
	if err != nil {
		// Invalid requests are rejected before any decision exists; they
		// are never written to the ledger.
		var invalid *authority.InvalidRequestError
		if errors.As(err, &invalid) {
			_, _ = fmt.Fprintf(stderr, "Error: invalid request: %v\n", invalid)
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "Error: evaluation failed: %v\n", err)
		return 2
	}

	if err := cfg.EnsureDataDir(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	decisionLedger, err := ledger.Open(ledger.KindDecision, cfg.DecisionLedgerPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	recorder := audit.NewRecorder(decisionLedger, engine.PolicyVersion())
	record, entryHash, err := recorder.Record(decision)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: record decision: %v\n", err)
		return 2
	}
	slog.Info("decision recorded",
		"correlation_id", record.CorrelationID,
		"decision", record.Decision,
		"entry_hash", entryHash)

	out, _ := json.MarshalIndent(record, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))

	if withEnforce && policy.Outcome(record.Decision) == policy.OutcomeAllow {
		if code := dispatchActions(cfg, record, actions, dryRun, stdout, stderr); code != 0 {
			return code
		}
	}

	if policy.Outcome(record.Decision) == policy.OutcomeAllow {
		return 0
	}
	return 1
}

func buildEngine(cfg *config.Config) (*authority.Engine, error) {
	store, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	delegations, err := delegation.LoadRegistry(cfg.DelegationPath)
	if err != nil {
		return nil, err
	}
	directory, err := authority.LoadDirectory(cfg.IdentityPath)
	if err != nil {
		return nil, err
	}
	return authority.NewEngine(store, delegation.NewResolver(delegations), directory), nil
}

func dispatchActions(cfg *config.Config, record audit.Record, actions []enforce.Action, dryRun bool, stdout, stderr io.Writer) int {
	if len(actions) == 0 {
		_, _ = fmt.Fprintln(stdout, "No actions declared; nothing to enforce.")
		return 0
	}

	enforcementLedger, err := ledger.Open(ledger.KindEnforcement, cfg.EnforcementLedgerPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	dispatcher, err := enforce.NewDispatcher(enforce.NewLockdownEffector(cfg.LockdownStatePath))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	gate := enforce.NewGate(dispatcher, enforcementLedger)

	records, err := gate.Dispatch(context.Background(), record, actions, dryRun)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: enforcement: %v\n", err)
		return 2
	}

	failed := false
	for _, r := range records {
		slog.Info("enforcement recorded",
			"decision_ref", r.DecisionRef,
			"effector", r.Effector,
			"outcome", r.Outcome,
			"dry_run", r.DryRun)
		if r.Outcome == enforce.OutcomeFailed {
			failed = true
		}
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))
	if failed {
		return 1
	}
	return 0
}
