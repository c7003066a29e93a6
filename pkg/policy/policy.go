// Package policy provides the read-only, versioned policy store: loading and
// structural validation of externally authored policy documents, and an
// indexed match over (role, permission, state).
//
// Policies are immutable once versioned. Changing behavior requires a new
// version_id, so no recorded decision ever references a policy whose content
// changed after the decision was made.
package policy

import (
	"fmt"
	"strings"
)

// Outcome is a policy's declared result for a matching request.
type Outcome string

const (
	OutcomeAllow           Outcome = "ALLOW"
	OutcomeDeny            Outcome = "DENY"
	OutcomeRequireApproval Outcome = "REQUIRE_ADDITIONAL_APPROVAL"
)

// ParseOutcome validates an outcome string from external data.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeAllow, OutcomeDeny, OutcomeRequireApproval:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// SystemState is the governance context a request is evaluated under.
// The set is closed; extending it means adding a constant here, never
// accepting free-form strings.
type SystemState string

const (
	StateNormal SystemState = "NORMAL"
	StateCrisis SystemState = "CRISIS"
)

// ParseSystemState validates a state string from external input. The match
// is exact: miscased input like "crisis" is unknown, not normalized, so a
// state that would never match the canonical index is rejected up front.
func ParseSystemState(s string) (SystemState, error) {
	switch SystemState(s) {
	case StateNormal:
		return StateNormal, nil
	case StateCrisis:
		return StateCrisis, nil
	}
	return "", fmt.Errorf("unknown system state %q", s)
}

// Policy is one immutable, versioned governance rule.
type Policy struct {
	ID                string      `json:"id"`
	VersionID         string      `json:"version_id"`
	Role              string      `json:"role"`
	Permission        string      `json:"permission"`
	State             SystemState `json:"state"`
	Outcome           Outcome     `json:"outcome"`
	ApprovalThreshold int         `json:"approval_threshold,omitempty"`
	// Condition is an optional CEL guard over the request. It is compiled
	// at load time; a policy whose guard evaluates false does not match.
	Condition string `json:"condition,omitempty"`
	Reason    string `json:"reason"`
}

// Document is the external, versioned policy collection as authored.
type Document struct {
	SchemaVersion string   `json:"schema_version"`
	Roles         []string `json:"roles,omitempty"`
	Policies      []Policy `json:"policies"`
}

// ConfigError reports malformed or contradictory governance data (policies
// or delegations). It is fatal at load time and never silently degraded
// into runtime behavior.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("governance configuration invalid: %s", strings.Join(e.Problems, "; "))
}
