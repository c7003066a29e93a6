package enforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/audit"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// ErrDispatchMisuse marks an attempt to enforce a decision whose outcome is
// not ALLOW. That is a caller bug, fatal and never retried: the gate must
// not be reachable for denied or still-pending decisions.
var ErrDispatchMisuse = errors.New("enforce: dispatch requires an ALLOW decision")

// Record is one enforcement event as persisted in the enforcement ledger,
// chained independently from decision records. It carries the originating
// decision's provenance for cross-referencing, but enforcement failure can
// never retroactively alter a decision record.
type Record struct {
	DecisionRef      string         `json:"decision_ref"`
	IdentityLabel    string         `json:"identity_label,omitempty"`
	Permission       string         `json:"requested_permission,omitempty"`
	PolicyIDs        []string       `json:"policy_ids,omitempty"`
	PolicyVersionIDs []string       `json:"policy_version_ids,omitempty"`
	Effector         string         `json:"effector"`
	Outcome          Outcome        `json:"outcome"`
	DryRun           bool           `json:"dry_run,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	Timestamp        string         `json:"timestamp"`
}

// Gate consumes engine decisions, applies fail-closed gating, and invokes
// declared effectors. Every dispatched action produces exactly one chained
// enforcement record.
type Gate struct {
	dispatcher *Dispatcher
	ledger     *ledger.Ledger
	clock      func() time.Time
}

// NewGate wires the gate to its dispatcher and the enforcement ledger.
func NewGate(d *Dispatcher, l *ledger.Ledger) *Gate {
	return &Gate{dispatcher: d, ledger: l, clock: time.Now}
}

// WithClock overrides the clock for testing.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// Dispatch executes the declared actions for an ALLOW decision and appends
// one enforcement record per action. A non-ALLOW decision returns
// ErrDispatchMisuse and appends nothing.
func (g *Gate) Dispatch(ctx context.Context, decision audit.Record, actions []Action, dryRun bool) ([]Record, error) {
	if policy.Outcome(decision.Decision) != policy.OutcomeAllow {
		return nil, fmt.Errorf("%w: decision %s has outcome %s",
			ErrDispatchMisuse, decision.CorrelationID, decision.Decision)
	}

	results := g.dispatcher.dispatch(ctx, actions, dryRun)

	records := make([]Record, 0, len(results))
	for _, result := range results {
		record := Record{
			DecisionRef:      decision.CorrelationID,
			IdentityLabel:    decision.IdentityLabel,
			Permission:       decision.Permission,
			PolicyIDs:        decision.PolicyIDs,
			PolicyVersionIDs: decision.PolicyVersionIDs,
			Effector:         result.Action.Type,
			Outcome:          result.Outcome,
			DryRun:           dryRun,
			Details:          result.Details,
			Timestamp:        audit.FormatTimestamp(g.clock()),
		}
		if _, err := g.ledger.Append(record); err != nil {
			return records, fmt.Errorf("enforce: append enforcement record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
