package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicies = `{
  "schema_version": "1.0.0",
  "roles": ["owner", "operator"],
  "policies": [
    {
      "id": "pol-lockdown-owner",
      "version_id": "pol-lockdown-owner@1",
      "role": "owner",
      "permission": "initiate_lockdown",
      "state": "CRISIS",
      "outcome": "ALLOW",
      "reason": "owner holds lockdown authority during crisis"
    },
    {
      "id": "pol-lockdown-operator",
      "version_id": "pol-lockdown-operator@1",
      "role": "operator",
      "permission": "initiate_lockdown",
      "state": "CRISIS",
      "outcome": "DENY",
      "reason": "operators cannot initiate lockdown alone"
    }
  ]
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policies.json"), []byte(testPolicies), 0o644))
	t.Setenv("SOV_DATA_DIR", dir)
	for _, key := range []string{
		"SOV_POLICY_PATH", "SOV_DELEGATION_PATH", "SOV_IDENTITY_PATH",
		"SOV_DECISION_LEDGER", "SOV_ENFORCEMENT_LEDGER",
		"SOV_LOCKDOWN_STATE", "SOV_INDEX_PATH", "SOV_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"sovctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestEvaluateAllowRecordsDecision(t *testing.T) {
	dir := setupEnv(t)

	code, stdout, _ := runCLI(t,
		"evaluate", "--identity", "alice", "--role", "owner",
		"--permission", "initiate_lockdown", "--state", "CRISIS")
	assert.Equal(t, 0, code)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &record))
	assert.Equal(t, "ALLOW", record["decision"])
	assert.Equal(t, "alice", record["identity_label"])

	raw, err := os.ReadFile(filepath.Join(dir, "decision_audit.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "\n"))
}

func TestEvaluateDenyExitsOne(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := runCLI(t,
		"evaluate", "--identity", "bob", "--role", "operator",
		"--permission", "initiate_lockdown", "--state", "CRISIS")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, `"decision": "DENY"`)
}

func TestEvaluateInvalidRequestRecordsNothing(t *testing.T) {
	dir := setupEnv(t)

	code, _, stderr := runCLI(t,
		"evaluate", "--identity", "alice", "--role", "owner",
		"--permission", "launch_satellite", "--state", "CRISIS")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid request")

	_, err := os.Stat(filepath.Join(dir, "decision_audit.jsonl"))
	assert.True(t, os.IsNotExist(err), "invalid requests must not be recorded")
}

func TestEvaluateScenarioWithEnforcement(t *testing.T) {
	dir := setupEnv(t)
	scenario := `
name: owner lockdown
identity:
  label: alice
  role: owner
permission: initiate_lockdown
state: CRISIS
actions:
  - action_type: lockdown_state
    parameters:
      operation: SET
      reason: scenario drill
`
	scenarioPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(scenario), 0o644))

	code, stdout, _ := runCLI(t, "evaluate", "--scenario", scenarioPath, "--enforce")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `"outcome": "SUCCESS"`)

	raw, err := os.ReadFile(filepath.Join(dir, "lockdown_state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"locked": true`)
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := setupEnv(t)

	code, _, _ := runCLI(t,
		"evaluate", "--identity", "alice", "--role", "owner",
		"--permission", "initiate_lockdown", "--state", "CRISIS")
	require.Equal(t, 0, code)

	code, stdout, _ := runCLI(t, "verify")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "OK")

	// Tamper with the recorded identity.
	ledgerPath := filepath.Join(dir, "decision_audit.jsonl")
	raw, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "alice", "eve", 1)
	require.NoError(t, os.WriteFile(ledgerPath, []byte(tampered), 0o644))

	code, stdout, _ = runCLI(t, "verify")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "BROKEN")
}

func TestValidateReportsProblems(t *testing.T) {
	dir := setupEnv(t)

	code, stdout, _ := runCLI(t, "validate")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "policies     OK")

	bad := strings.Replace(testPolicies, `"outcome": "DENY"`, `"outcome": "MAYBE"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policies.json"), []byte(bad), 0o644))

	code, _, stderr := runCLI(t, "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "policies")
}

func TestReplayListAndCorrelate(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := runCLI(t,
		"evaluate", "--identity", "alice", "--role", "owner",
		"--permission", "initiate_lockdown", "--state", "CRISIS")
	require.Equal(t, 0, code)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &record))
	correlationID, _ := record["decision_correlation_id"].(string)
	require.NotEmpty(t, correlationID)

	code, stdout, _ = runCLI(t, "replay", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, correlationID)
	assert.Contains(t, stdout, "chain intact")

	code, stdout, _ = runCLI(t, "replay", "correlate", "--id", correlationID)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `"identity_label": "alice"`)

	code, _, stderr := runCLI(t, "replay", "correlate", "--id", "missing")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "no decision")
}

func TestReplayIndexRebuild(t *testing.T) {
	dir := setupEnv(t)

	code, _, _ := runCLI(t,
		"evaluate", "--identity", "alice", "--role", "owner",
		"--permission", "initiate_lockdown", "--state", "CRISIS")
	require.Equal(t, 0, code)

	code, stdout, _ := runCLI(t, "replay", "index")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Indexed 1 decisions")

	_, err := os.Stat(filepath.Join(dir, "decision_index.db"))
	assert.NoError(t, err)
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)
	code, _, stderr := runCLI(t, "conquer")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command")
}
