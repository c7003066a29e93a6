// Package delegation resolves scoped, time-bounded grants of authority from
// a principal to a delegate.
//
// Resolution is deliberately conservative: a delegation that is expired, not
// yet valid, revoked, or out of scope is treated as nonexistent, never as an
// error. Delegations are one hop only; a delegate's own delegations are
// never chained to find a second-order principal.
package delegation

import (
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// Delegation is a single scoped grant from a principal to a delegate.
type Delegation struct {
	ID         string             `json:"id"`
	Principal  string             `json:"principal"`
	Delegate   string             `json:"delegate"`
	Permission string             `json:"permission"`
	State      policy.SystemState `json:"state"`
	PolicyIDs  []string           `json:"policy_ids"`
	ValidFrom  time.Time          `json:"valid_from"`
	ValidTo    time.Time          `json:"valid_to"`
	RevokedAt  *time.Time         `json:"revoked_at,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// Active reports whether the delegation's validity window contains now and
// no revocation has taken effect. The window is half-open: valid_from
// inclusive, valid_to exclusive.
func (d Delegation) Active(now time.Time) bool {
	if d.RevokedAt != nil && !d.RevokedAt.After(now) {
		return false
	}
	if now.Before(d.ValidFrom) {
		return false
	}
	return now.Before(d.ValidTo)
}

// Matches reports whether the delegation covers the exact request tuple.
func (d Delegation) Matches(delegate, permission string, state policy.SystemState) bool {
	return d.Delegate == delegate && d.Permission == permission && d.State == state
}

// Resolver finds delegations applicable to a request over an immutable
// snapshot of the delegation set.
type Resolver struct {
	delegations []Delegation
}

// NewResolver wraps a loaded delegation set.
func NewResolver(delegations []Delegation) *Resolver {
	return &Resolver{delegations: delegations}
}

// Resolve returns every delegation matching the exact (delegate, permission,
// state) tuple whose validity window contains now, in load order. Everything
// else is excluded silently.
func (r *Resolver) Resolve(delegate, permission string, state policy.SystemState, now time.Time) []Delegation {
	var applicable []Delegation
	for _, d := range r.delegations {
		if !d.Matches(delegate, permission, state) {
			continue
		}
		if !d.Active(now) {
			continue
		}
		applicable = append(applicable, d)
	}
	return applicable
}

// Active returns every delegation whose window contains now, regardless of
// scope. Used by the oversight CLI, never by the authority engine.
func (r *Resolver) Active(now time.Time) []Delegation {
	var active []Delegation
	for _, d := range r.delegations {
		if d.Active(now) {
			active = append(active, d)
		}
	}
	return active
}
