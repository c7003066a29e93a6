// Package authority is the decision engine: it combines policy matching and
// delegation resolution into a single attributed, reproducible decision.
//
// Evaluation is a pure function of its inputs plus read-only snapshots of
// the policy store and delegation set. There is no clock access beyond the
// explicit now parameter, no randomness, and no I/O.
package authority

import (
	"fmt"
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// Identity is the caller-supplied actor of a request. It is immutable per
// request and never persisted as a standalone entity.
type Identity struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Role  string `json:"role"`
}

// Decision is the attributed outcome of one evaluation.
type Decision struct {
	IdentityLabel    string             `json:"identity_label"`
	Permission       string             `json:"requested_permission"`
	State            policy.SystemState `json:"system_state"`
	Outcome          policy.Outcome     `json:"decision"`
	PolicyIDs        []string           `json:"policy_ids"`
	PolicyVersionIDs []string           `json:"policy_version_ids"`
	Reason           string             `json:"reason"`
	Timestamp        time.Time          `json:"timestamp"`

	// Delegation attribution, set only when an approval requirement was
	// satisfied through delegated authority. Accountability stays anchored
	// to the principals, not the delegate.
	DelegateLabel   string   `json:"delegate_identity_label,omitempty"`
	PrincipalLabels []string `json:"principal_identity_labels,omitempty"`
	DelegationIDs   []string `json:"delegation_ids,omitempty"`
}

// InvalidRequestError marks a malformed request: unknown permission, unknown
// state, or an identity without label or role. It is surfaced to the caller
// and must never be logged as a governance decision.
type InvalidRequestError struct {
	Field  string
	Value  string
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %q: %s", e.Field, e.Value, e.Detail)
}

// Directory resolves identity labels to full identities. The engine needs it
// to evaluate whether a delegation's principal independently qualifies.
type Directory interface {
	Lookup(label string) (Identity, bool)
}

// StaticDirectory is a map-backed Directory snapshot.
type StaticDirectory map[string]Identity

// Lookup implements Directory.
func (d StaticDirectory) Lookup(label string) (Identity, bool) {
	id, ok := d[label]
	return id, ok
}
