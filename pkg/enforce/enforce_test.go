package enforce_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/audit"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/enforce"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func newGate(t *testing.T, effectors ...enforce.Effector) (*enforce.Gate, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "enforcement.jsonl")
	led, err := ledger.Open(ledger.KindEnforcement, path)
	require.NoError(t, err)
	dispatcher, err := enforce.NewDispatcher(effectors...)
	require.NoError(t, err)
	return enforce.NewGate(dispatcher, led).WithClock(fixedClock), path
}

func allowDecision() audit.Record {
	return audit.Record{
		CorrelationID:    "corr-001",
		IdentityLabel:    "ops-operator",
		Permission:       "initiate_lockdown",
		SystemState:      "CRISIS",
		Decision:         "ALLOW",
		PolicyIDs:        []string{"pol-007"},
		PolicyVersionIDs: []string{"pol-007@3"},
	}
}

func lockdownAction(op string) enforce.Action {
	return enforce.Action{
		Type:   enforce.ActionLockdownState,
		Target: "local",
		Parameters: map[string]any{
			"operation":    op,
			"reason":       "incident containment",
			"requested_by": "ops-operator",
		},
	}
}

func TestGateRejectsNonAllowDecisions(t *testing.T) {
	gate, path := newGate(t)

	for _, outcome := range []string{"DENY", "REQUIRE_ADDITIONAL_APPROVAL"} {
		decision := allowDecision()
		decision.Decision = outcome

		records, err := gate.Dispatch(context.Background(), decision, []enforce.Action{lockdownAction(enforce.OpSet)}, false)
		require.ErrorIs(t, err, enforce.ErrDispatchMisuse, "outcome %s must not dispatch", outcome)
		assert.Empty(t, records)
	}

	report, err := ledger.Verify(path)
	require.NoError(t, err)
	assert.Zero(t, report.TotalEntries, "rejected dispatches must append nothing")
}

func TestLockdownSetThenRedundantSet(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "lockdown_state.json")
	effector := enforce.NewLockdownEffector(statePath).WithClock(fixedClock)
	gate, ledgerPath := newGate(t, effector)

	records, err := gate.Dispatch(context.Background(), allowDecision(), []enforce.Action{lockdownAction(enforce.OpSet)}, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enforce.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, "corr-001", records[0].DecisionRef)
	assert.True(t, effector.State().Locked)

	// Re-applying the same operation changes nothing but is still recorded.
	records, err = gate.Dispatch(context.Background(), allowDecision(), []enforce.Action{lockdownAction(enforce.OpSet)}, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enforce.OutcomeNoop, records[0].Outcome)
	assert.True(t, effector.State().Locked)

	report, err := ledger.Verify(ledgerPath)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.TotalEntries)
}

func TestLockdownClearAndToggle(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	effector := enforce.NewLockdownEffector(statePath).WithClock(fixedClock)
	ctx := context.Background()

	result, err := effector.Execute(ctx, lockdownAction(enforce.OpClear), false)
	require.NoError(t, err)
	assert.Equal(t, enforce.OutcomeNoop, result.Outcome, "clearing the default unlocked state is a no-op")

	result, err = effector.Execute(ctx, lockdownAction(enforce.OpToggle), false)
	require.NoError(t, err)
	assert.Equal(t, enforce.OutcomeSuccess, result.Outcome)
	assert.True(t, effector.State().Locked)

	result, err = effector.Execute(ctx, lockdownAction(enforce.OpClear), false)
	require.NoError(t, err)
	assert.Equal(t, enforce.OutcomeSuccess, result.Outcome)
	assert.False(t, effector.State().Locked)
}

func TestLockdownDryRunLeavesStateUntouched(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	effector := enforce.NewLockdownEffector(statePath).WithClock(fixedClock)
	gate, _ := newGate(t, effector)

	records, err := gate.Dispatch(context.Background(), allowDecision(), []enforce.Action{lockdownAction(enforce.OpSet)}, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enforce.OutcomeSuccess, records[0].Outcome)
	assert.True(t, records[0].DryRun)

	_, err = os.Stat(statePath)
	assert.True(t, os.IsNotExist(err), "dry run must not create the state file")
	assert.False(t, effector.State().Locked)
}

func TestLockdownUnsupportedOperation(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	effector := enforce.NewLockdownEffector(statePath).WithClock(fixedClock)

	result, err := effector.Execute(context.Background(), lockdownAction("ESCALATE"), false)
	require.NoError(t, err)
	assert.Equal(t, enforce.OutcomeNotApplicable, result.Outcome)
}

func TestLockdownRecoversFromCorruptedStateFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0o644))
	effector := enforce.NewLockdownEffector(statePath).WithClock(fixedClock)

	state := effector.State()
	assert.False(t, state.Locked)
	assert.Contains(t, state.Reason, "recovered")

	result, err := effector.Execute(context.Background(), lockdownAction(enforce.OpSet), false)
	require.NoError(t, err)
	assert.Equal(t, enforce.OutcomeSuccess, result.Outcome)
	assert.True(t, effector.State().Locked)
}

func TestDispatchUnregisteredActionType(t *testing.T) {
	gate, ledgerPath := newGate(t)

	action := enforce.Action{Type: "network_isolation", Target: "local"}
	records, err := gate.Dispatch(context.Background(), allowDecision(), []enforce.Action{action}, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enforce.OutcomeNotImplemented, records[0].Outcome)
	assert.Equal(t, "network_isolation", records[0].Effector)

	report, err := ledger.Verify(ledgerPath)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.TotalEntries)
}

type failingEffector struct{}

func (failingEffector) ActionType() string { return "alert_broadcast" }

func (failingEffector) Execute(context.Context, enforce.Action, bool) (enforce.Result, error) {
	return enforce.Result{}, errors.New("broadcast channel unavailable")
}

func TestEffectorErrorCapturedAsFailed(t *testing.T) {
	gate, _ := newGate(t, failingEffector{})

	actions := []enforce.Action{
		{Type: "alert_broadcast"},
		{Type: "alert_broadcast"},
	}
	records, err := gate.Dispatch(context.Background(), allowDecision(), actions, false)
	require.NoError(t, err, "effector failure must not abort the batch")
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, enforce.OutcomeFailed, record.Outcome)
		assert.Equal(t, "broadcast channel unavailable", record.Details["reason"])
	}
}

func TestDuplicateEffectorRegistrationFails(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	_, err := enforce.NewDispatcher(
		enforce.NewLockdownEffector(statePath),
		enforce.NewLockdownEffector(statePath),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisteredActionTypesSorted(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "lockdown_state.json")
	dispatcher, err := enforce.NewDispatcher(failingEffector{}, enforce.NewLockdownEffector(statePath))
	require.NoError(t, err)
	assert.Equal(t, []string{"alert_broadcast", "lockdown_state"}, dispatcher.RegisteredActionTypes())
}
