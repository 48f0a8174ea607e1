package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/registry/internal/domain"
)

// Scenario defines a conformance test scenario.
// Scenarios drive the registry through a flow of operations against a fresh
// store and assert on the resulting trace, the primary store tables and the
// monthly archive stores.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 instant the scenario clock starts at.
	// Defaults to DefaultNow so scenarios stay reproducible.
	Now string `yaml:"now,omitempty"`

	// User attributes mutations when a step does not name its own.
	// Defaults to DefaultUser.
	User string `yaml:"user,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, archive_state
	Assertions []Assertion `yaml:"assertions"`
}

// Defaults applied to scenarios that leave the fields empty.
const (
	DefaultNow  = "2025-10-03T09:30:00Z"
	DefaultUser = "clerk"
)

// Operation names accepted in FlowStep.Op.
const (
	OpCreate  = "create"
	OpDelete  = "delete"
	OpList    = "list"
	OpArchive = "archive"
	OpAdvance = "advance"
)

// FlowStep is one registry operation.
type FlowStep struct {
	// Op is one of create, delete, list, archive or advance.
	Op string `yaml:"op"`

	// Category is the category identifier for create and list.
	Category string `yaml:"category,omitempty"`

	// Args is the create payload. It goes through the payload schema
	// exactly as an HTTP body would.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// ID is the registration id for delete.
	ID int64 `yaml:"id,omitempty"`

	// Month is the listing month for list, or the explicit archive month
	// for archive. An archive step without a month runs the monthly
	// archive for the month before the clock's current one.
	Month string `yaml:"month,omitempty"`

	// Page is the 1-based listing page. Defaults to 1.
	Page int `yaml:"page,omitempty"`

	// User overrides Scenario.User for this step.
	User string `yaml:"user,omitempty"`

	// By advances the clock by a Go duration (advance only).
	By string `yaml:"by,omitempty"`

	// To sets the clock to an RFC 3339 instant (advance only).
	To string `yaml:"to,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Outcome names recorded in the trace and matched by ExpectClause.Case.
const (
	CaseOK         = "ok"
	CaseValidation = "validation"
	CaseNotFound   = "not_found"
	CaseStorage    = "storage"
)

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Case is the expected outcome: ok, validation, not_found or storage.
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	// If nil, only the case is validated.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an op appears in the trace with matching result
	// - "trace_order": ops appear in order
	// - "trace_count": an op appears exactly N times
	// - "final_state": query a primary store table and verify values
	// - "archive_state": verify the row counts of a month's archive store
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome filters trace_contains and trace_count to one outcome.
	Outcome string `yaml:"outcome,omitempty"`

	// Result is the expected step result (trace_contains).
	// Subset match - only specified fields are validated.
	Result map[string]interface{} `yaml:"result,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the primary store table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Month names the archive store (archive_state).
	Month string `yaml:"month,omitempty"`

	// Registrations is the expected archived registration count (archive_state).
	Registrations *int64 `yaml:"registrations,omitempty"`

	// AuditEvents is the expected archived audit event count (archive_state).
	AuditEvents *int64 `yaml:"audit_events,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertArchiveState  = "archive_state"
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step FlowStep) error {
	switch step.Op {
	case OpCreate:
		if step.Category == "" {
			return fmt.Errorf("create requires category")
		}
	case OpDelete:
		if step.ID == 0 {
			return fmt.Errorf("delete requires id")
		}
	case OpList:
		if step.Month == "" {
			return fmt.Errorf("list requires month")
		}
	case OpArchive:
	case OpAdvance:
		if (step.By == "") == (step.To == "") {
			return fmt.Errorf("advance requires exactly one of by or to")
		}
		if step.By != "" {
			if _, err := time.ParseDuration(step.By); err != nil {
				return fmt.Errorf("by: %w", err)
			}
		}
		if step.To != "" {
			if _, err := time.Parse(time.RFC3339, step.To); err != nil {
				return fmt.Errorf("to: %w", err)
			}
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Expect != nil {
		switch step.Expect.Case {
		case CaseOK, CaseValidation, CaseNotFound, CaseStorage:
		default:
			return fmt.Errorf("unknown expect case %q", step.Expect.Case)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("%s requires op", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("trace_order requires at least two ops")
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("final_state requires table")
		}
	case AssertArchiveState:
		if _, err := domain.ParseMonth(a.Month); err != nil {
			return fmt.Errorf("archive_state month: %w", err)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
