// Package config resolves runtime configuration from environment variables
// and loads declarative scenario files.
package config

import (
	"os"
	"path/filepath"
)

// Config holds the file locations and logging level for a deployment. All
// state is local files; there is no network configuration.
type Config struct {
	DataDir               string
	PolicyPath            string
	DelegationPath        string
	IdentityPath          string
	DecisionLedgerPath    string
	EnforcementLedgerPath string
	LockdownStatePath     string
	IndexPath             string
	LogLevel              string
}

// Load resolves configuration from environment variables. Every path has a
// default under the data directory, so a bare environment works out of the
// box.
func Load() *Config {
	dataDir := os.Getenv("SOV_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	logLevel := os.Getenv("SOV_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		DataDir:               dataDir,
		PolicyPath:            envPath("SOV_POLICY_PATH", dataDir, "policies.json"),
		DelegationPath:        envPath("SOV_DELEGATION_PATH", dataDir, "delegations.jsonl"),
		IdentityPath:          envPath("SOV_IDENTITY_PATH", dataDir, "identities.json"),
		DecisionLedgerPath:    envPath("SOV_DECISION_LEDGER", dataDir, "decision_audit.jsonl"),
		EnforcementLedgerPath: envPath("SOV_ENFORCEMENT_LEDGER", dataDir, "enforcement_audit.jsonl"),
		LockdownStatePath:     envPath("SOV_LOCKDOWN_STATE", dataDir, "lockdown_state.json"),
		IndexPath:             envPath("SOV_INDEX_PATH", dataDir, "decision_index.db"),
		LogLevel:              logLevel,
	}
}

func envPath(key, dataDir, name string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return filepath.Join(dataDir, name)
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}
