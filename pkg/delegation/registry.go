package delegation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// LoadRegistry reads the append-only JSONL delegation registry. A missing
// file is an empty registry; a structurally invalid record is a
// *policy.ConfigError, matching the policy source's read contract.
func LoadRegistry(path string) ([]Delegation, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delegation: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var (
		delegations []Delegation
		problems    []string
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var d Delegation
		if err := json.Unmarshal(raw, &d); err != nil {
			problems = append(problems, fmt.Sprintf("line %d: invalid JSON: %v", line, err))
			continue
		}
		problems = append(problems, validateRecord(d, line)...)
		delegations = append(delegations, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("delegation: scan %s: %w", path, err)
	}
	if len(problems) > 0 {
		return nil, &policy.ConfigError{Problems: problems}
	}
	return delegations, nil
}

func validateRecord(d Delegation, line int) []string {
	var problems []string
	if d.ID == "" {
		problems = append(problems, fmt.Sprintf("line %d: delegation missing id", line))
	}
	if d.Principal == "" || d.Delegate == "" {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s missing principal or delegate", line, d.ID))
	}
	if d.Principal != "" && d.Principal == d.Delegate {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s is self-referential", line, d.ID))
	}
	if d.Permission == "" {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s missing permission", line, d.ID))
	}
	if _, err := policy.ParseSystemState(string(d.State)); err != nil {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s: %v", line, d.ID, err))
	}
	if d.ValidFrom.IsZero() || d.ValidTo.IsZero() {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s missing validity window", line, d.ID))
	} else if !d.ValidFrom.Before(d.ValidTo) {
		problems = append(problems, fmt.Sprintf("line %d: delegation %s has inverted validity window", line, d.ID))
	}
	return problems
}
