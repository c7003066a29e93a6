package policy

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/canonicalize"
)

type matchKey struct {
	role       string
	permission string
	state      SystemState
}

// Store is the in-memory, read-only indexed view of a validated policy
// document. Lookups are keyed by the exact (role, permission, state) tuple;
// there is no implicit inference, and absence of a match is reported as an
// empty result for the authority engine's default rule to handle.
type Store struct {
	policies    []Policy
	index       map[matchKey][]int
	programs    map[string]cel.Program
	permissions map[string]struct{}
	version     string
}

// NewStore indexes a validated document and compiles every CEL guard.
// A guard that fails to compile is a *ConfigError: a broken condition must
// never degrade into a policy that silently stops matching.
func NewStore(doc Document) (*Store, error) {
	version, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return nil, fmt.Errorf("policy: hash document: %w", err)
	}

	s := &Store{
		policies:    doc.Policies,
		index:       make(map[matchKey][]int),
		programs:    make(map[string]cel.Program),
		permissions: make(map[string]struct{}),
		version:     version,
	}

	env, err := cel.NewEnv(
		cel.Variable("role", cel.StringType),
		cel.Variable("permission", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("now", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: create guard environment: %w", err)
	}

	var problems []string
	for i, p := range doc.Policies {
		key := matchKey{role: p.Role, permission: p.Permission, state: p.State}
		s.index[key] = append(s.index[key], i)
		s.permissions[p.Permission] = struct{}{}

		if p.Condition == "" {
			continue
		}
		ast, issues := env.Compile(p.Condition)
		if issues != nil && issues.Err() != nil {
			problems = append(problems, fmt.Sprintf("policy %s condition compile: %v", p.ID, issues.Err()))
			continue
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			problems = append(problems, fmt.Sprintf("policy %s condition program: %v", p.ID, err))
			continue
		}
		s.programs[p.ID] = prg
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return s, nil
}

// Match returns every policy whose (role, permission, state) tuple matches
// the request, in declaration order, with CEL guards applied. A guard
// evaluation failure aborts the match; it never silently drops a policy.
func (s *Store) Match(role, permission string, state SystemState, now time.Time) ([]Policy, error) {
	indices := s.index[matchKey{role: role, permission: permission, state: state}]
	if len(indices) == 0 {
		return nil, nil
	}

	input := map[string]any{
		"role":       role,
		"permission": permission,
		"state":      string(state),
		"now":        now.UTC().Unix(),
	}

	matched := make([]Policy, 0, len(indices))
	for _, i := range indices {
		p := s.policies[i]
		prg, guarded := s.programs[p.ID]
		if guarded {
			out, _, err := prg.Eval(input)
			if err != nil {
				return nil, fmt.Errorf("policy: evaluate condition of %s: %w", p.ID, err)
			}
			pass, ok := out.Value().(bool)
			if !ok {
				return nil, fmt.Errorf("policy: condition of %s is not boolean", p.ID)
			}
			if !pass {
				continue
			}
		}
		matched = append(matched, p)
	}
	return matched, nil
}

// KnownPermission reports whether any policy in the store governs the named
// permission. Unknown permission strings are invalid requests, not denials.
func (s *Store) KnownPermission(permission string) bool {
	_, ok := s.permissions[permission]
	return ok
}

// Len returns the number of policies in the store.
func (s *Store) Len() int { return len(s.policies) }

// Version is the content-addressed hash of the loaded document.
func (s *Store) Version() string { return s.version }
