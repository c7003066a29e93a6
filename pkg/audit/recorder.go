// Package audit persists governance decisions as hash-chained records.
//
// The record schema keeps the core decision fields stable for reviewers and
// auditors; correlation and delegation fields are included only when present
// so older tooling reading the log keeps working.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/authority"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
)

// Record is the canonical decision record as it appears in the decision
// ledger, before the ledger attaches prev_hash and entry_hash.
type Record struct {
	CorrelationID       string   `json:"decision_correlation_id"`
	IdentityLabel       string   `json:"identity_label"`
	Permission          string   `json:"requested_permission"`
	SystemState         string   `json:"system_state"`
	Decision            string   `json:"decision"`
	PolicyIDs           []string `json:"policy_ids"`
	PolicyVersionIDs    []string `json:"policy_version_ids,omitempty"`
	PolicyBundleVersion string   `json:"policy_bundle_version,omitempty"`
	Reason              string   `json:"reason"`
	Timestamp           string   `json:"timestamp"`

	DelegateLabel   string   `json:"delegate_identity_label,omitempty"`
	PrincipalLabels []string `json:"principal_identity_labels,omitempty"`
	DelegationIDs   []string `json:"delegation_ids,omitempty"`
}

// Recorder appends decision records to the decision ledger. It is the only
// component that converts engine decisions into persisted records, so the
// serialization stays in one place.
type Recorder struct {
	ledger        *ledger.Ledger
	bundleVersion string
	newID         func() string
}

// NewRecorder wires a recorder to the decision ledger. bundleVersion is the
// content-addressed version of the policy document the decisions were made
// under.
func NewRecorder(l *ledger.Ledger, bundleVersion string) *Recorder {
	return &Recorder{
		ledger:        l,
		bundleVersion: bundleVersion,
		newID:         uuid.NewString,
	}
}

// WithIDGenerator overrides correlation id generation for testing.
func (r *Recorder) WithIDGenerator(fn func() string) *Recorder {
	r.newID = fn
	return r
}

// Record converts a decision into its ledger record and appends it,
// returning the record and its entry hash.
func (r *Recorder) Record(d authority.Decision) (Record, string, error) {
	record := Record{
		CorrelationID:       r.newID(),
		IdentityLabel:       d.IdentityLabel,
		Permission:          d.Permission,
		SystemState:         string(d.State),
		Decision:            string(d.Outcome),
		PolicyIDs:           d.PolicyIDs,
		PolicyVersionIDs:    d.PolicyVersionIDs,
		PolicyBundleVersion: r.bundleVersion,
		Reason:              d.Reason,
		Timestamp:           FormatTimestamp(d.Timestamp),
		DelegateLabel:       d.DelegateLabel,
		PrincipalLabels:     d.PrincipalLabels,
		DelegationIDs:       d.DelegationIDs,
	}

	entryHash, err := r.ledger.Append(record)
	if err != nil {
		return Record{}, "", fmt.Errorf("audit: append decision record: %w", err)
	}
	return record, entryHash, nil
}

// FormatTimestamp renders a timestamp the one way the ledger accepts:
// RFC 3339 in UTC at second precision, so canonical bytes are reproducible
// across implementations.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
