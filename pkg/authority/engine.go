package authority

import (
	"fmt"
	"strings"
	"time"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/delegation"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

const reasonNoApplicablePolicy = "no applicable policy"

// Engine evaluates requests against a read-only policy store and delegation
// set. It is safe for concurrent use: Evaluate touches no shared mutable
// state.
type Engine struct {
	store     *policy.Store
	resolver  *delegation.Resolver
	directory Directory
}

// NewEngine wires the engine to its read-only collaborators. The directory
// may be nil, in which case no delegation can ever satisfy an approval
// requirement (fail-closed).
func NewEngine(store *policy.Store, resolver *delegation.Resolver, directory Directory) *Engine {
	if directory == nil {
		directory = StaticDirectory{}
	}
	return &Engine{store: store, resolver: resolver, directory: directory}
}

// PolicyVersion returns the content-addressed version of the loaded policy
// document, for stamping into decision records.
func (e *Engine) PolicyVersion() string {
	return e.store.Version()
}

// Evaluate decides whether identity may exercise permission under state at
// the given instant.
//
// Precedence over multiple matching policies is deny-overrides: any DENY
// wins outright; otherwise an approval requirement stands unless a
// qualifying delegation satisfies it; otherwise ALLOW. Absence of any
// matching policy is an explicit DENY, never an error and never a silent
// default.
func (e *Engine) Evaluate(identity Identity, permission string, state policy.SystemState, now time.Time) (Decision, error) {
	if err := e.validate(identity, permission, state); err != nil {
		return Decision{}, err
	}

	matched, err := e.store.Match(identity.Role, permission, state, now)
	if err != nil {
		return Decision{}, fmt.Errorf("authority: match policies: %w", err)
	}

	decision := Decision{
		IdentityLabel: identity.Label,
		Permission:    permission,
		State:         state,
		Timestamp:     now.UTC(),
		PolicyIDs:     []string{},
	}

	if len(matched) == 0 {
		decision.Outcome = policy.OutcomeDeny
		decision.Reason = reasonNoApplicablePolicy
		return decision, nil
	}

	denies := filterOutcome(matched, policy.OutcomeDeny)
	requires := filterOutcome(matched, policy.OutcomeRequireApproval)

	switch {
	case len(denies) > 0:
		decision.Outcome = policy.OutcomeDeny
		decision.PolicyIDs = policyIDs(denies)
		decision.PolicyVersionIDs = versionIDs(denies)
		decision.Reason = denies[0].Reason

	case len(requires) > 0:
		e.applyApprovalRule(&decision, identity, permission, state, now, requires)

	default:
		decision.Outcome = policy.OutcomeAllow
		decision.PolicyIDs = policyIDs(matched)
		decision.PolicyVersionIDs = versionIDs(matched)
		decision.Reason = matched[0].Reason
	}

	return decision, nil
}

// applyApprovalRule settles a REQUIRE_ADDITIONAL_APPROVAL candidate. The
// outcome is promoted to ALLOW only when a delegation references one of the
// candidate policies and its principal independently qualifies for ALLOW
// under the same policy set. Promotion never applies to DENY.
func (e *Engine) applyApprovalRule(decision *Decision, identity Identity, permission string, state policy.SystemState, now time.Time, requires []policy.Policy) {
	decision.PolicyIDs = policyIDs(requires)
	decision.PolicyVersionIDs = versionIDs(requires)

	candidateIDs := make(map[string]struct{}, len(requires))
	for _, p := range requires {
		candidateIDs[p.ID] = struct{}{}
	}

	var qualified []delegation.Delegation
	for _, d := range e.resolveDelegations(identity.Label, permission, state, now) {
		if !referencesAny(d.PolicyIDs, candidateIDs) {
			continue
		}
		if e.principalQualifies(d.Principal, permission, state, now) {
			qualified = append(qualified, d)
		}
	}

	if len(qualified) == 0 {
		decision.Outcome = policy.OutcomeRequireApproval
		decision.Reason = requires[0].Reason
		return
	}

	decision.Outcome = policy.OutcomeAllow
	decision.DelegateLabel = identity.Label
	for _, d := range qualified {
		decision.DelegationIDs = append(decision.DelegationIDs, d.ID)
		decision.PrincipalLabels = appendUnique(decision.PrincipalLabels, d.Principal)
	}
	decision.Reason = fmt.Sprintf("approval requirement satisfied by delegation from qualifying principal(s): %s",
		strings.Join(decision.PrincipalLabels, ", "))
}

// principalQualifies re-runs the precedence rule for the principal without
// any delegation: the principal must reach a clean ALLOW on its own
// authority for the delegation to count.
func (e *Engine) principalQualifies(principalLabel, permission string, state policy.SystemState, now time.Time) bool {
	principal, ok := e.directory.Lookup(principalLabel)
	if !ok {
		return false
	}
	matched, err := e.store.Match(principal.Role, permission, state, now)
	if err != nil || len(matched) == 0 {
		return false
	}
	for _, p := range matched {
		if p.Outcome != policy.OutcomeAllow {
			return false
		}
	}
	return true
}

func (e *Engine) resolveDelegations(delegate, permission string, state policy.SystemState, now time.Time) []delegation.Delegation {
	if e.resolver == nil {
		return nil
	}
	return e.resolver.Resolve(delegate, permission, state, now)
}

func (e *Engine) validate(identity Identity, permission string, state policy.SystemState) error {
	if identity.Label == "" {
		return &InvalidRequestError{Field: "identity.label", Detail: "must not be empty"}
	}
	if identity.Role == "" {
		return &InvalidRequestError{Field: "identity.role", Value: identity.Label, Detail: "must not be empty"}
	}
	if _, err := policy.ParseSystemState(string(state)); err != nil {
		return &InvalidRequestError{Field: "state", Value: string(state), Detail: "not a recognized system state"}
	}
	if permission == "" || !e.store.KnownPermission(permission) {
		return &InvalidRequestError{Field: "permission", Value: permission, Detail: "not governed by any loaded policy"}
	}
	return nil
}

func filterOutcome(policies []policy.Policy, outcome policy.Outcome) []policy.Policy {
	var out []policy.Policy
	for _, p := range policies {
		if p.Outcome == outcome {
			out = append(out, p)
		}
	}
	return out
}

func policyIDs(policies []policy.Policy) []string {
	ids := make([]string, len(policies))
	for i, p := range policies {
		ids[i] = p.ID
	}
	return ids
}

func versionIDs(policies []policy.Policy) []string {
	ids := make([]string, len(policies))
	for i, p := range policies {
		ids[i] = p.VersionID
	}
	return ids
}

func referencesAny(ids []string, candidates map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := candidates[id]; ok {
			return true
		}
	}
	return false
}

func appendUnique(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}
