package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ledger scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also seeds the owners'
	// keys, so renaming a scenario changes every address it touches.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Owners are funded before the flow starts. Every step owner must be
	// listed here.
	Owners []string `yaml:"owners"`

	// Flow contains the operations to run, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final ledger state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpEnsure = "ensure"
	OpSet    = "set"
	OpRead   = "read"
)

// MaxTraceBalance is the largest balance a scenario may use. Traces
// encode balances as JSON numbers, which are exact only up to 2^53.
const MaxTraceBalance = 1 << 53

// Step is one record operation.
type Step struct {
	// Op is ensure, set or read.
	Op string `yaml:"op"`

	// Owner names whose record is addressed.
	Owner string `yaml:"owner"`

	// Signer names who signs a set. Defaults to Owner; any other name
	// produces an identity that does not own the record.
	Signer string `yaml:"signer,omitempty"`

	// Category is the record category.
	Category string `yaml:"category"`

	// Balance is the value to set. Required for set.
	Balance *uint64 `yaml:"balance,omitempty"`

	// Expect validates the outcome. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error kind, e.g. UNAUTHORIZED.
	Error string `yaml:"error,omitempty"`

	// Found is the expected lookup result (read only).
	Found *bool `yaml:"found,omitempty"`

	// Balance is the expected balance of the returned record.
	Balance *uint64 `yaml:"balance,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_count": the ledger holds exactly Count records
	// - "record": Owner's Category record exists (with Balance if set)
	// - "missing": Owner's Category record does not exist
	// - "trace_count": Op appears exactly Count times in the trace
	Type string `yaml:"type"`

	Owner    string  `yaml:"owner,omitempty"`
	Category string  `yaml:"category,omitempty"`
	Balance  *uint64 `yaml:"balance,omitempty"`
	Op       string  `yaml:"op,omitempty"`
	Count    int     `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertRecord      = "record"
	AssertMissing     = "missing"
	AssertTraceCount  = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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
	if len(s.Owners) == 0 {
		return fmt.Errorf("owners list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	owners := make(map[string]bool, len(s.Owners))
	for i, name := range s.Owners {
		if name == "" {
			return fmt.Errorf("owners[%d]: name is required", i)
		}
		if owners[name] {
			return fmt.Errorf("owners[%d]: duplicate owner %q", i, name)
		}
		owners[name] = true
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step, owners); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, owners); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step, owners map[string]bool) error {
	switch step.Op {
	case OpEnsure, OpSet, OpRead:
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if !owners[step.Owner] {
		return fmt.Errorf("flow[%d]: owner %q is not declared in owners", index, step.Owner)
	}
	if step.Category == "" {
		return fmt.Errorf("flow[%d]: category is required", index)
	}
	if step.Signer != "" && step.Op != OpSet {
		return fmt.Errorf("flow[%d]: signer is only allowed for set", index)
	}

	if step.Op == OpSet {
		if step.Balance == nil {
			return fmt.Errorf("flow[%d]: balance is required for set", index)
		}
		if *step.Balance > MaxTraceBalance {
			return fmt.Errorf("flow[%d]: balance %d exceeds %d", index, *step.Balance, uint64(MaxTraceBalance))
		}
	} else if step.Balance != nil {
		return fmt.Errorf("flow[%d]: balance is only allowed for set", index)
	}

	if step.Expect != nil {
		if step.Expect.Found != nil && step.Op != OpRead {
			return fmt.Errorf("flow[%d].expect: found is only allowed for read", index)
		}
		if step.Expect.Error != "" && (step.Expect.Found != nil || step.Expect.Balance != nil) {
			return fmt.Errorf("flow[%d].expect: error excludes found and balance", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, owners map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertRecord, AssertMissing:
		if !owners[a.Owner] {
			return fmt.Errorf("assertions[%d]: owner %q is not declared in owners", index, a.Owner)
		}
		if a.Category == "" {
			return fmt.Errorf("assertions[%d]: category is required for %s", index, a.Type)
		}
		if a.Type == AssertMissing && a.Balance != nil {
			return fmt.Errorf("assertions[%d]: balance is not allowed for missing", index)
		}
	case AssertTraceCount:
		switch a.Op {
		case OpEnsure, OpSet, OpRead:
		default:
			return fmt.Errorf("assertions[%d]: unknown op %q for trace_count", index, a.Op)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
