package enforce

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ActionLockdownState is the action type handled by LockdownEffector.
const ActionLockdownState = "lockdown_state"

// Lockdown operations.
const (
	OpSet    = "SET"
	OpClear  = "CLEAR"
	OpToggle = "TOGGLE"
)

// LockdownState is the file-backed lockdown flag.
type LockdownState struct {
	Locked      bool   `json:"locked"`
	UpdatedAt   string `json:"updated_at"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

// LockdownEffector is a local-only, file-backed effector for the
// lockdown_state action. It is idempotent: applying an operation that would
// not change the state reports NOOP and leaves the file untouched.
type LockdownEffector struct {
	path  string
	clock func() time.Time
}

// NewLockdownEffector targets the given state file.
func NewLockdownEffector(path string) *LockdownEffector {
	return &LockdownEffector{path: path, clock: time.Now}
}

// WithClock overrides the clock for testing.
func (e *LockdownEffector) WithClock(clock func() time.Time) *LockdownEffector {
	e.clock = clock
	return e
}

// ActionType implements Effector.
func (e *LockdownEffector) ActionType() string { return ActionLockdownState }

// State reads the current lockdown state. A missing file is the unlocked
// default; a corrupted file recovers to unlocked with the recovery surfaced
// in the returned state's reason, never ignored silently.
func (e *LockdownEffector) State() LockdownState {
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return e.defaultState("")
	}
	var state LockdownState
	if err := json.Unmarshal(raw, &state); err != nil {
		return e.defaultState("recovered from invalid lockdown state file")
	}
	return state
}

func (e *LockdownEffector) defaultState(reason string) LockdownState {
	return LockdownState{
		Locked:    false,
		UpdatedAt: e.clock().UTC().Format(time.RFC3339),
		Reason:    reason,
	}
}

// Execute implements Effector.
func (e *LockdownEffector) Execute(ctx context.Context, action Action, dryRun bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	op := strings.ToUpper(strings.TrimSpace(stringParam(action, "operation")))
	switch op {
	case OpSet, OpClear, OpToggle:
	default:
		return Result{
			Outcome: OutcomeNotApplicable,
			Action:  action,
			Details: map[string]any{
				"reason":               "unsupported or missing operation",
				"supported_operations": []string{OpSet, OpClear, OpToggle},
			},
		}, nil
	}

	current := e.State()
	next := current.Locked
	switch op {
	case OpSet:
		next = true
	case OpClear:
		next = false
	case OpToggle:
		next = !current.Locked
	}

	if next == current.Locked {
		return Result{
			Outcome: OutcomeNoop,
			Action:  action,
			Details: map[string]any{
				"operation": op,
				"locked":    current.Locked,
				"note":      "lockdown state unchanged",
			},
		}, nil
	}

	updated := LockdownState{
		Locked:      next,
		UpdatedAt:   e.clock().UTC().Format(time.RFC3339),
		Reason:      stringParam(action, "reason"),
		RequestedBy: stringParam(action, "requested_by"),
	}

	if !dryRun {
		if err := e.write(updated); err != nil {
			return Result{}, fmt.Errorf("write lockdown state: %w", err)
		}
	}

	return Result{
		Outcome: OutcomeSuccess,
		Action:  action,
		Details: map[string]any{
			"operation":       op,
			"previous_locked": current.Locked,
			"locked":          updated.Locked,
			"dry_run":         dryRun,
		},
	}, nil
}

func (e *LockdownEffector) write(state LockdownState) error {
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.path, raw, 0o644)
}

func stringParam(action Action, key string) string {
	v, ok := action.Parameters[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
