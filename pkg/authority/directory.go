package authority

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/policy"
)

// LoadDirectory reads a JSON array of identities into a StaticDirectory
// keyed by label. A missing file yields an empty directory: delegation
// principals then never qualify, which fails closed.
func LoadDirectory(path string) (StaticDirectory, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return StaticDirectory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authority: read identity directory %s: %w", path, err)
	}

	var identities []Identity
	if err := json.Unmarshal(raw, &identities); err != nil {
		return nil, &policy.ConfigError{Problems: []string{
			fmt.Sprintf("identity directory %s: %v", path, err),
		}}
	}

	directory := make(StaticDirectory, len(identities))
	var problems []string
	for i, id := range identities {
		if id.Label == "" {
			problems = append(problems, fmt.Sprintf("identity %d: label is required", i))
			continue
		}
		if id.Role == "" {
			problems = append(problems, fmt.Sprintf("identity %q: role is required", id.Label))
			continue
		}
		if _, dup := directory[id.Label]; dup {
			problems = append(problems, fmt.Sprintf("identity %q: duplicate label", id.Label))
			continue
		}
		directory[id.Label] = id
	}
	if len(problems) > 0 {
		return nil, &policy.ConfigError{Problems: problems}
	}
	return directory, nil
}
