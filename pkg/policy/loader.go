package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema is the structural contract for externally authored policy
// documents. Structural validation happens before any semantic checks so
// authoring mistakes surface as one coherent load failure.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "policies"],
  "properties": {
    "schema_version": {"type": "string", "minLength": 1},
    "roles": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "policies": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "version_id", "role", "permission", "state", "outcome", "reason"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "version_id": {"type": "string", "minLength": 1},
          "role": {"type": "string", "minLength": 1},
          "permission": {"type": "string", "minLength": 1},
          "state": {"type": "string", "enum": ["NORMAL", "CRISIS"]},
          "outcome": {"type": "string", "enum": ["ALLOW", "DENY", "REQUIRE_ADDITIONAL_APPROVAL"]},
          "approval_threshold": {"type": "integer", "minimum": 1},
          "condition": {"type": "string"},
          "reason": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// schemaVersionConstraint pins the supported document generation.
var schemaVersionConstraint = semver.MustParse("1.0.0")

var compiledDocumentSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://sovereignty.schemas.local/policy-document.schema.json"
	if err := c.AddResource(url, strings.NewReader(documentSchema)); err != nil {
		panic(fmt.Sprintf("policy: schema resource: %v", err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("policy: schema compile: %v", err))
	}
	return s
}

// Load reads and validates a policy document from disk, returning the
// indexed store. Any structural or semantic problem is a *ConfigError.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	store, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("policy: load %s: %w", path, err)
	}
	return store, nil
}

// Parse validates raw document bytes and builds the indexed store.
func Parse(raw []byte) (*Store, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("document is not valid JSON: %v", err)}}
	}
	if err := compiledDocumentSchema.Validate(generic); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("document failed schema validation: %v", err)}}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("document decode: %v", err)}}
	}

	if problems := validateDocument(doc); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return NewStore(doc)
}

// validateDocument covers the semantic rules the JSON schema cannot express:
// schema version generation, duplicate policy identities, and role
// references outside the declared role set.
func validateDocument(doc Document) []string {
	var problems []string

	version, err := semver.NewVersion(doc.SchemaVersion)
	if err != nil {
		problems = append(problems, fmt.Sprintf("schema_version %q is not semantic: %v", doc.SchemaVersion, err))
	} else if version.Major() != schemaVersionConstraint.Major() || version.LessThan(schemaVersionConstraint) {
		problems = append(problems, fmt.Sprintf("schema_version %q unsupported, require %d.x >= %s",
			doc.SchemaVersion, schemaVersionConstraint.Major(), schemaVersionConstraint))
	}

	declaredRoles := make(map[string]struct{}, len(doc.Roles))
	for _, role := range doc.Roles {
		declaredRoles[role] = struct{}{}
	}

	seen := make(map[string]Policy, len(doc.Policies))
	for _, p := range doc.Policies {
		if prior, dup := seen[p.ID]; dup {
			if prior.VersionID != p.VersionID {
				problems = append(problems, fmt.Sprintf("policy %s declared twice with conflicting versions %s and %s",
					p.ID, prior.VersionID, p.VersionID))
			} else {
				problems = append(problems, fmt.Sprintf("duplicate policy id %s", p.ID))
			}
			continue
		}
		seen[p.ID] = p

		if len(declaredRoles) > 0 {
			if _, ok := declaredRoles[p.Role]; !ok {
				problems = append(problems, fmt.Sprintf("policy %s references undeclared role %q", p.ID, p.Role))
			}
		}
		if p.Outcome == OutcomeRequireApproval && p.ApprovalThreshold == 0 {
			problems = append(problems, fmt.Sprintf("policy %s requires additional approval but declares no approval_threshold", p.ID))
		}
	}

	return problems
}
