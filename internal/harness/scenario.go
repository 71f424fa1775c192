package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/model"
)

// Scenario defines a projection scenario.
// A scenario feeds a sequence of batches through the projector and asserts
// on the per-batch outcomes and on the final materialized view.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BatchID is the fixed batch correlation ID. Defaults to "test-batch".
	BatchID string `yaml:"batch_id,omitempty"`

	// Namespace overrides the address namespace the projector accepts.
	Namespace string `yaml:"namespace,omitempty"`

	// Epoch seeds the clock that stamps fixtures without explicit timestamps.
	Epoch uint64 `yaml:"epoch,omitempty"`

	// Batches are delivered to the projector in order.
	Batches []BatchStep `yaml:"batches"`

	// Assertions validate outcomes and final state.
	// Supported types: outcome, final_state, row_count, no_violations
	Assertions []Assertion `yaml:"assertions"`
}

// BatchStep is one event batch. Block is omitted for a batch that carries
// state changes without a block commit.
type BatchStep struct {
	Block   *BlockStep      `yaml:"block,omitempty"`
	Users   []UserFixture   `yaml:"users,omitempty"`
	Records []RecordFixture `yaml:"records,omitempty"`
	Raw     []RawFixture    `yaml:"raw,omitempty"`
}

// BlockStep is the block-commit event of a batch.
type BlockStep struct {
	Num int64  `yaml:"num"`
	ID  string `yaml:"id"`
}

// UserFixture is a user written at its own address.
type UserFixture struct {
	PublicKey string `yaml:"public_key"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role,omitempty"`
	Timestamp uint64 `yaml:"timestamp,omitempty"`
}

// RecordFixture is a record written at its own address.
type RecordFixture struct {
	RecordID  string            `yaml:"record_id"`
	Name      string            `yaml:"name"`
	Price     string            `yaml:"price,omitempty"`
	ForSale   bool              `yaml:"for_sale,omitempty"`
	ImageURL  string            `yaml:"image_url,omitempty"`
	Stolen    bool              `yaml:"stolen,omitempty"`
	Created   uint64            `yaml:"created,omitempty"`
	Updated   uint64            `yaml:"updated,omitempty"`
	Owners    []OwnerFixture    `yaml:"owners,omitempty"`
	Locations []LocationFixture `yaml:"locations,omitempty"`
}

// OwnerFixture is one ownership entry.
type OwnerFixture struct {
	UserID    string `yaml:"user_id"`
	Timestamp uint64 `yaml:"timestamp,omitempty"`
}

// LocationFixture is one location entry.
type LocationFixture struct {
	Latitude  int64  `yaml:"latitude"`
	Longitude int64  `yaml:"longitude"`
	Timestamp uint64 `yaml:"timestamp,omitempty"`
}

// RawFixture is an arbitrary state change. Either Address or Family is set:
// Family builds an address owned by another transaction family.
type RawFixture struct {
	Address string `yaml:"address,omitempty"`
	Family  string `yaml:"family,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Hex     string `yaml:"hex"`
}

// Assertion validates an outcome or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome": Check the state and counters of one batch
	// - "final_state": Query a table and verify expected values
	// - "row_count": Count matching rows in a table
	// - "no_violations": Run the store invariant checks
	Type string `yaml:"type"`

	// Batch is the zero-based batch index (used by outcome).
	Batch int `yaml:"batch,omitempty"`

	// State is the expected projector state name (used by outcome).
	State string `yaml:"state,omitempty"`

	// Forked, Applied and Skipped are checked when set (used by outcome).
	Forked  *bool `yaml:"forked,omitempty"`
	Applied *int  `yaml:"applied,omitempty"`
	Skipped *int  `yaml:"skipped,omitempty"`

	// Table is the state table name (used by final_state and row_count).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state and row_count).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of rows (used by row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome      = "outcome"
	AssertFinalState   = "final_state"
	AssertRowCount     = "row_count"
	AssertNoViolations = "no_violations"
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
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
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

	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Namespace != "" && len(s.Namespace) != addressing.NamespaceLen {
		return fmt.Errorf("namespace must be %d hex characters", addressing.NamespaceLen)
	}

	for i, b := range s.Batches {
		if err := validateBatch(i, &b); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Batches)); err != nil {
			return err
		}
	}

	return nil
}

func validateBatch(index int, b *BatchStep) error {
	if b.Block != nil && b.Block.ID == "" {
		return fmt.Errorf("batches[%d].block: id is required", index)
	}
	if b.Block == nil && len(b.Users)+len(b.Records)+len(b.Raw) == 0 {
		return fmt.Errorf("batches[%d]: block or changes are required", index)
	}
	for j, u := range b.Users {
		if u.PublicKey == "" {
			return fmt.Errorf("batches[%d].users[%d]: public_key is required", index, j)
		}
		if u.Role != "" {
			if _, err := model.ParseRole(u.Role); err != nil {
				return fmt.Errorf("batches[%d].users[%d]: %w", index, j, err)
			}
		}
	}
	for j, r := range b.Records {
		if r.RecordID == "" {
			return fmt.Errorf("batches[%d].records[%d]: record_id is required", index, j)
		}
	}
	for j, r := range b.Raw {
		if (r.Address == "") == (r.Family == "") {
			return fmt.Errorf("batches[%d].raw[%d]: exactly one of address or family is required", index, j)
		}
		if _, err := hex.DecodeString(r.Hex); err != nil {
			return fmt.Errorf("batches[%d].raw[%d]: hex: %w", index, j, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, batches int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcome:
		if a.Batch < 0 || a.Batch >= batches {
			return fmt.Errorf("assertions[%d]: batch %d out of range", index, a.Batch)
		}
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for outcome", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertNoViolations:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
