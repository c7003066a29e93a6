// Package enforce is the routing layer between governance decisions and
// local effectors.
//
// The dispatcher never makes decisions, never infers actions, and never
// talks to external systems; it routes explicitly declared actions to
// registered effectors and returns structured, auditable results. The gate
// in front of it is the only component allowed to trigger enforcement, and
// it refuses everything but an ALLOW decision.
package enforce

import (
	"context"
	"fmt"
	"sort"
)

// Outcome of a single enforcement action.
type Outcome string

const (
	// OutcomeSuccess: the effector executed and reported success.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeNoop: the effector executed but nothing needed to change.
	OutcomeNoop Outcome = "NOOP"
	// OutcomeNotApplicable: the action was not applicable as declared.
	OutcomeNotApplicable Outcome = "NOT_APPLICABLE"
	// OutcomeNotImplemented: no effector is registered for the action type.
	OutcomeNotImplemented Outcome = "NOT_IMPLEMENTED"
	// OutcomeFailed: the effector attempted execution and failed.
	OutcomeFailed Outcome = "FAILED"
)

// Action is a declarative description of one enforcement effect. The
// governance layer constructs actions explicitly; the dispatcher never
// invents them.
type Action struct {
	Type       string         `json:"action_type"`
	Target     string         `json:"target,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Result of one effector handling one action.
type Result struct {
	Outcome Outcome        `json:"outcome"`
	Action  Action         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// Effector applies one kind of local, side-effect-constrained enforcement.
//
// Implementations must be idempotent (re-applying an already-applied effect
// reports OutcomeNoop, not an error) and must honor dryRun by computing what
// would change without changing it.
type Effector interface {
	ActionType() string
	Execute(ctx context.Context, action Action, dryRun bool) (Result, error)
}

// Dispatcher routes declared actions to registered effectors.
type Dispatcher struct {
	effectors map[string]Effector
}

// NewDispatcher registers the given effectors. Registration conflicts are
// explicit wiring bugs and fail construction.
func NewDispatcher(effectors ...Effector) (*Dispatcher, error) {
	d := &Dispatcher{effectors: make(map[string]Effector)}
	for _, e := range effectors {
		if err := d.Register(e); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register adds an effector for its declared action type.
func (d *Dispatcher) Register(e Effector) error {
	actionType := e.ActionType()
	if actionType == "" {
		return fmt.Errorf("enforce: effector declares empty action type")
	}
	if _, exists := d.effectors[actionType]; exists {
		return fmt.Errorf("enforce: effector for %q already registered", actionType)
	}
	d.effectors[actionType] = e
	return nil
}

// RegisteredActionTypes lists every action type with an effector, sorted.
func (d *Dispatcher) RegisteredActionTypes() []string {
	types := make([]string, 0, len(d.effectors))
	for t := range d.effectors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// dispatch executes each action against its effector. A missing effector
// yields NOT_IMPLEMENTED; an effector error is captured as FAILED. Effector
// problems never abort the batch.
func (d *Dispatcher) dispatch(ctx context.Context, actions []Action, dryRun bool) []Result {
	results := make([]Result, 0, len(actions))
	for _, action := range actions {
		effector, ok := d.effectors[action.Type]
		if !ok {
			results = append(results, Result{
				Outcome: OutcomeNotImplemented,
				Action:  action,
				Details: map[string]any{"reason": "no effector registered for action type"},
			})
			continue
		}

		result, err := effector.Execute(ctx, action, dryRun)
		if err != nil {
			result = Result{
				Outcome: OutcomeFailed,
				Action:  action,
				Details: map[string]any{"reason": err.Error()},
			}
		}
		results = append(results, result)
	}
	return results
}
