package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablegate/internal/ir"
)

// Scenario defines one batch run against a fresh database.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the directory of CUE procedure files.
	// Relative paths are resolved against the scenario file.
	Catalog string `yaml:"catalog"`

	// Security enables privilege checks and follow-up derivation.
	Security bool `yaml:"security,omitempty"`

	// Setup holds SQL statements run before the batch, e.g. CREATE TABLE.
	Setup []string `yaml:"setup,omitempty"`

	// Grants populate the authorization tables before the batch.
	Grants []Grant `yaml:"grants,omitempty"`

	// User submits the batch.
	User string `yaml:"user,omitempty"`

	// Authorities are the caller's groups. When empty and User is set,
	// they are read from the authorization tables.
	Authorities []string `yaml:"authorities,omitempty"`

	// Token is the fixed batch token, for deterministic golden files.
	Token string `yaml:"token,omitempty"`

	// MaxItems bounds the executed items, follow-ups included.
	// Zero keeps the orchestrator default.
	MaxItems int `yaml:"max_items,omitempty"`

	// Batch is the submitted batch, in the JSON wire form of
	// ir.TransactionItem written as YAML.
	Batch Batch `yaml:"batch"`

	// Expect is the expected outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Grant links a privilege to a group, creating both as needed, and adds
// the group to each of Users.
type Grant struct {
	Privilege        string   `yaml:"privilege"`
	Group            string   `yaml:"group"`
	Checker          string   `yaml:"checker,omitempty"`
	SecurityToken    string   `yaml:"security_token,omitempty"`
	RowLevelSecurity bool     `yaml:"row_level_security,omitempty"`
	Users            []string `yaml:"users,omitempty"`
}

// Expect specifies the expected batch outcome.
type Expect struct {
	// Outcome is "committed" or "rolled_back".
	Outcome string `yaml:"outcome"`

	// Error is the expected ErrorKind of a rolled back batch.
	Error string `yaml:"error,omitempty"`

	// Results lists the expected item ids in execution order.
	Results []string `yaml:"results,omitempty"`
}

// Batch decodes the scenario batch through the JSON wire form, so
// scenarios and `tablegate exec` accept the same items.
type Batch []ir.TransactionItem

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Batch) UnmarshalYAML(node *yaml.Node) error {
	var generic any
	if err := node.Decode(&generic); err != nil {
		return err
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var items []ir.TransactionItem
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	*b = items
	return nil
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an item of Procedure (and ID, if set) ran
	// - "trace_order": Procedures ran in this order
	// - "trace_count": Procedure ran exactly Count times
	// - "final_state": exactly one row of Table matches Where and Expect
	Type string `yaml:"type"`

	// Procedure is used by trace_contains and trace_count.
	Procedure string `yaml:"procedure,omitempty"`

	// ID is optionally matched by trace_contains.
	ID string `yaml:"id,omitempty"`

	// Procedures is the expected order (trace_order).
	Procedures []string `yaml:"procedures,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies equality filters (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected. The catalog path is resolved against the
// directory of the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); err != nil {
		return fmt.Errorf("catalog not found: %s", s.Catalog)
	}
	if len(s.Batch) == 0 {
		return fmt.Errorf("batch is required and must be non-empty")
	}

	switch s.Expect.Outcome {
	case OutcomeCommitted:
		if s.Expect.Error != "" {
			return fmt.Errorf("expect: error is only valid for outcome %q", OutcomeRolledBack)
		}
	case OutcomeRolledBack:
		if s.Expect.Error != "" && !validErrorKind(s.Expect.Error) {
			return fmt.Errorf("expect: unknown error kind %q", s.Expect.Error)
		}
	default:
		return fmt.Errorf("expect: outcome must be %q or %q", OutcomeCommitted, OutcomeRolledBack)
	}

	if s.MaxItems < 0 {
		return fmt.Errorf("max_items must be non-negative")
	}

	for i, g := range s.Grants {
		if g.Privilege == "" || g.Group == "" {
			return fmt.Errorf("grants[%d]: privilege and group are required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Procedure == "" {
			return fmt.Errorf("assertions[%d]: procedure is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Procedures) == 0 {
			return fmt.Errorf("assertions[%d]: procedures list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Procedure == "" {
			return fmt.Errorf("assertions[%d]: procedure is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
