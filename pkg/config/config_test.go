package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SOV_DATA_DIR", "SOV_POLICY_PATH", "SOV_DELEGATION_PATH",
		"SOV_DECISION_LEDGER", "SOV_ENFORCEMENT_LEDGER",
		"SOV_LOCKDOWN_STATE", "SOV_INDEX_PATH", "SOV_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "policies.json"), cfg.PolicyPath)
	assert.Equal(t, filepath.Join("data", "decision_audit.jsonl"), cfg.DecisionLedgerPath)
	assert.Equal(t, filepath.Join("data", "enforcement_audit.jsonl"), cfg.EnforcementLedgerPath)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SOV_DATA_DIR", "/var/lib/sov")
	t.Setenv("SOV_POLICY_PATH", "/etc/sov/policies.json")
	t.Setenv("SOV_LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, "/var/lib/sov", cfg.DataDir)
	assert.Equal(t, "/etc/sov/policies.json", cfg.PolicyPath)
	assert.Equal(t, filepath.Join("/var/lib/sov", "delegations.jsonl"), cfg.DelegationPath)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

const scenarioYAML = `
name: crisis lockdown drill
identity:
  label: ops-operator
  role: operator
permission: initiate_lockdown
state: CRISIS
dry_run: true
actions:
  - action_type: lockdown_state
    target: local
    parameters:
      operation: SET
      reason: containment drill
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "crisis lockdown drill", scenario.Name)
	assert.Equal(t, "ops-operator", scenario.Identity.Label)
	assert.Equal(t, "CRISIS", scenario.State)
	assert.True(t, scenario.DryRun)

	actions := scenario.EnforceActions()
	require.Len(t, actions, 1)
	assert.Equal(t, "lockdown_state", actions[0].Type)
	assert.Equal(t, "SET", actions[0].Parameters["operation"])
}

func TestLoadScenarioRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity.label is required")
	assert.Contains(t, err.Error(), "permission is required")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
