package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/enforce"
)

// Scenario is a declarative evaluation request loaded from YAML: who asks
// for what, under which system state, and which enforcement actions should
// follow if the request is allowed.
type Scenario struct {
	Name       string           `yaml:"name"`
	Identity   ScenarioIdentity `yaml:"identity"`
	Permission string           `yaml:"permission"`
	State      string           `yaml:"state"`
	Actions    []ScenarioAction `yaml:"actions,omitempty"`
	DryRun     bool             `yaml:"dry_run,omitempty"`
}

// ScenarioIdentity names the requesting identity.
type ScenarioIdentity struct {
	ID    string `yaml:"id,omitempty"`
	Label string `yaml:"label"`
	Role  string `yaml:"role"`
}

// ScenarioAction is one declared enforcement action.
type ScenarioAction struct {
	Type       string         `yaml:"action_type"`
	Target     string         `yaml:"target,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	var problems []string
	if scenario.Identity.Label == "" {
		problems = append(problems, "identity.label is required")
	}
	if scenario.Identity.Role == "" {
		problems = append(problems, "identity.role is required")
	}
	if scenario.Permission == "" {
		problems = append(problems, "permission is required")
	}
	if scenario.State == "" {
		problems = append(problems, "state is required")
	}
	for i, action := range scenario.Actions {
		if action.Type == "" {
			problems = append(problems, fmt.Sprintf("actions[%d].action_type is required", i))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid scenario %s: %v", path, problems)
	}

	return &scenario, nil
}

// EnforceActions converts the declared actions for dispatch.
func (s *Scenario) EnforceActions() []enforce.Action {
	if len(s.Actions) == 0 {
		return nil
	}
	actions := make([]enforce.Action, 0, len(s.Actions))
	for _, a := range s.Actions {
		actions = append(actions, enforce.Action{
			Type:       a.Type,
			Target:     a.Target,
			Parameters: a.Parameters,
		})
	}
	return actions
}
