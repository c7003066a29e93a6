package audit_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/audit"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/authority"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

func decisionFixture() authority.Decision {
	return authority.Decision{
		IdentityLabel:    "SovereignOwner",
		Permission:       "AUTHORIZE_EMERGENCY_LOCKDOWN",
		State:            policy.StateCrisis,
		Outcome:          policy.OutcomeAllow,
		PolicyIDs:        []string{"policy-001"},
		PolicyVersionIDs: []string{"policy-001-v1"},
		Reason:           "Sovereign owner authorizes emergency lockdown in CRISIS state.",
		Timestamp:        time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openDecisionLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(ledger.KindDecision, filepath.Join(t.TempDir(), "audit_log.jsonl"))
	require.NoError(t, err)
	return l
}

func TestRecordAppendsChainedEntry(t *testing.T) {
	l := openDecisionLedger(t)
	rec := audit.NewRecorder(l, "bundle-hash").WithIDGenerator(func() string { return "corr-1" })

	record, entryHash, err := rec.Record(decisionFixture())
	require.NoError(t, err)
	assert.Equal(t, "corr-1", record.CorrelationID)
	assert.Equal(t, "ALLOW", record.Decision)
	assert.Equal(t, "2026-06-01T12:00:00Z", record.Timestamp)
	assert.Equal(t, entryHash, l.Head())

	report, err := ledger.Verify(l.Path())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.HashedEntries)
}

func TestRecordOmitsEmptyDelegationFields(t *testing.T) {
	l := openDecisionLedger(t)
	rec := audit.NewRecorder(l, "bundle-hash")

	_, _, err := rec.Record(decisionFixture())
	require.NoError(t, err)

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	assert.NotContains(t, line, "delegation_ids")
	assert.NotContains(t, line, "delegate_identity_label")
	assert.NotContains(t, line, "principal_identity_labels")
}

func TestRecordCarriesDelegationAttribution(t *testing.T) {
	l := openDecisionLedger(t)
	rec := audit.NewRecorder(l, "bundle-hash")

	d := decisionFixture()
	d.IdentityLabel = "Guardian"
	d.DelegateLabel = "Guardian"
	d.PrincipalLabels = []string{"SovereignOwner"}
	d.DelegationIDs = []string{"del-001"}

	_, _, err := rec.Record(d)
	require.NoError(t, err)

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &stored))
	assert.Equal(t, "Guardian", stored["delegate_identity_label"])
	assert.Equal(t, []any{"del-001"}, stored["delegation_ids"])
	assert.Equal(t, []any{"SovereignOwner"}, stored["principal_identity_labels"])
}

func TestRecordSequenceStaysChained(t *testing.T) {
	l := openDecisionLedger(t)
	rec := audit.NewRecorder(l, "bundle-hash")

	for i := 0; i < 3; i++ {
		d := decisionFixture()
		d.Timestamp = d.Timestamp.Add(time.Duration(i) * time.Minute)
		_, _, err := rec.Record(d)
		require.NoError(t, err)
	}

	report, err := ledger.Verify(l.Path())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 3, report.TotalEntries)
}

func TestFormatTimestampDropsSubsecond(t *testing.T) {
	ts := time.Date(2026, 6, 1, 12, 0, 0, 999999999, time.UTC)
	assert.Equal(t, "2026-06-01T12:00:00Z", audit.FormatTimestamp(ts))
}
