package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one block"
batches:
  - block: { num: 1, id: b1 }
assertions:
  - type: no_violations
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Batches, 1)
	require.NotNil(t, s.Batches[0].Block)
	assert.Equal(t, int64(1), s.Batches[0].Block.Num)
	assert.Equal(t, "b1", s.Batches[0].Block.ID)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertNoViolations, s.Assertions[0].Type)
}

func TestParseScenario_Fixtures(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: fixtures
description: "all fixture kinds"
epoch: 100
batches:
  - block: { num: 3, id: c3 }
    users:
      - { public_key: pk, name: Pat, role: Admin, timestamp: 7 }
    records:
      - record_id: r1
        name: Drum
        price: "9"
        for_sale: true
        stolen: true
        owners: [{ user_id: pk }]
        locations: [{ latitude: -1, longitude: 2 }]
    raw:
      - { address: "abc", hex: "" }
      - { family: other, key: k, hex: "0a" }
assertions:
  - type: outcome
    batch: 0
    state: committed
    applied: 2
`))
	require.NoError(t, err)

	b := s.Batches[0]
	assert.Equal(t, uint64(100), s.Epoch)
	assert.Equal(t, "Admin", b.Users[0].Role)
	assert.Equal(t, uint64(7), b.Users[0].Timestamp)
	assert.True(t, b.Records[0].ForSale)
	assert.True(t, b.Records[0].Stolen)
	assert.Equal(t, int64(-1), b.Records[0].Locations[0].Latitude)
	assert.Equal(t, "other", b.Raw[1].Family)
	require.NotNil(t, s.Assertions[0].Applied)
	assert.Equal(t, 2, *s.Assertions[0].Applied)
	assert.Nil(t, s.Assertions[0].Forked)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelled key"
batches:
  - block: { num: 1, id: b1 }
assertion:
  - type: no_violations
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: no_violations }]`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: no_violations }]`,
			want: "description is required",
		},
		{
			name: "no batches",
			yaml: `
name: n
description: d
assertions: [{ type: no_violations }]`,
			want: "batches list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]`,
			want: "assertions list is required",
		},
		{
			name: "empty batch",
			yaml: `
name: n
description: d
batches: [{}]
assertions: [{ type: no_violations }]`,
			want: "batches[0]: block or changes are required",
		},
		{
			name: "block without id",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1 } }]
assertions: [{ type: no_violations }]`,
			want: "batches[0].block: id is required",
		},
		{
			name: "bad role",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a }, users: [{ public_key: pk, name: x, role: Owner }] }]
assertions: [{ type: no_violations }]`,
			want: `unknown role "Owner"`,
		},
		{
			name: "raw with both address and family",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a }, raw: [{ address: x, family: y, hex: "" }] }]
assertions: [{ type: no_violations }]`,
			want: "exactly one of address or family",
		},
		{
			name: "raw bad hex",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a }, raw: [{ address: x, hex: zz }] }]
assertions: [{ type: no_violations }]`,
			want: "batches[0].raw[0]: hex",
		},
		{
			name: "bad namespace",
			yaml: `
name: n
description: d
namespace: abc
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: no_violations }]`,
			want: "namespace must be 6 hex characters",
		},
		{
			name: "outcome batch out of range",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: outcome, batch: 3, state: committed }]`,
			want: "batch 3 out of range",
		},
		{
			name: "outcome without state",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: outcome, batch: 0 }]`,
			want: "state is required for outcome",
		},
		{
			name: "final_state without expect",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: final_state, table: users }]`,
			want: "expect is required for final_state",
		},
		{
			name: "row_count without table",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: row_count, count: 1 }]`,
			want: "table is required for row_count",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: d
batches: [{ block: { num: 1, id: a } }]
assertions: [{ type: trace_order }]`,
			want: `unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}
