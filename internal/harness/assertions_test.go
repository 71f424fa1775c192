package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinity/internal/model"
	"github.com/roach88/infinity/internal/store"
	"github.com/roach88/infinity/internal/testutil"
)

// seededStore returns an in-memory store holding one user at block 1 and
// a second version of it at block 2.
func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, b := range []struct {
		num  int64
		id   string
		name string
	}{{1, "b1", "Alice"}, {2, "b2", "Alice B"}} {
		tx, err := st.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertCheckpoint(ctx, model.Checkpoint{BlockNum: b.num, BlockID: b.id}))
		u := &model.User{PublicKey: "pk-alice", Name: b.name, Role: model.RoleCreator, Timestamp: 10}
		require.NoError(t, tx.AppendVersion(ctx, u, b.num, model.MaxBlockNum))
		require.NoError(t, tx.Commit())
	}
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "match",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users",
				Where:  map[string]interface{}{"public_key": "pk-alice", "start_block_num": 2},
				Expect: map[string]interface{}{"name": "Alice B", "role": "Creator", "end_block_num": model.MaxBlockNum, "timestamp": 10},
			},
		},
		{
			name: "closed version",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users",
				Where:  map[string]interface{}{"end_block_num": 2},
				Expect: map[string]interface{}{"name": "Alice"},
			},
		},
		{
			name: "ambiguous",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users",
				Where:  map[string]interface{}{"public_key": "pk-alice"},
				Expect: map[string]interface{}{"name": "Alice"},
			},
			wantErr: "several rows matched",
		},
		{
			name: "not found",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users",
				Where:  map[string]interface{}{"public_key": "pk-nobody"},
				Expect: map[string]interface{}{"name": "x"},
			},
			wantErr: "no matching row",
		},
		{
			name: "missing column",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "blocks",
				Where:  map[string]interface{}{"block_num": 1},
				Expect: map[string]interface{}{"hash": "x"},
			},
			wantErr: `column "hash"`,
		},
		{
			name: "value mismatch",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "blocks",
				Where:  map[string]interface{}{"block_num": 1},
				Expect: map[string]interface{}{"block_id": "b9"},
			},
			wantErr: "block_id = b9",
		},
		{
			name: "bad table",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users; DROP TABLE users",
				Expect: map[string]interface{}{"name": "x"},
			},
			wantErr: "invalid table name",
		},
		{
			name: "bad column",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "users",
				Where:  map[string]interface{}{"name OR 1=1": "x"},
				Expect: map[string]interface{}{"name": "x"},
			},
			wantErr: "invalid column name",
		},
		{
			name: "unknown table",
			a: Assertion{
				Type:   AssertFinalState,
				Table:  "ledgers",
				Expect: map[string]interface{}{"name": "x"},
			},
			wantErr: "no such table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.a)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRowCount(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	require.NoError(t, assertRowCount(ctx, st, Assertion{Type: AssertRowCount, Table: "users", Count: 2}))
	require.NoError(t, assertRowCount(ctx, st, Assertion{
		Type:  AssertRowCount,
		Table: "users",
		Where: map[string]interface{}{"end_block_num": model.MaxBlockNum},
		Count: 1,
	}))

	err := assertRowCount(ctx, st, Assertion{Type: AssertRowCount, Table: "blocks", Count: 3})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertRowCount, ae.Type)
	assert.Equal(t, "2 rows", ae.Actual)
}

func TestAssertNoViolations(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	require.NoError(t, assertNoViolations(ctx, st))

	_, err := st.DB().ExecContext(ctx,
		`INSERT INTO users (public_key, name, role, timestamp, start_block_num, end_block_num)
		VALUES ('pk-alice', 'Ghost', 'User', 0, 1, ?)`, model.MaxBlockNum)
	require.NoError(t, err)

	err = assertNoViolations(ctx, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), store.RuleMultipleOpen)
}

func TestAssertOutcome(t *testing.T) {
	batches := []BatchResult{
		{Index: 0, State: "committed", Block: 5, BlockID: "abc", Applied: 2},
		{Index: 1, State: "discarded", Err: "boom"},
	}

	require.NoError(t, assertOutcome(batches, Assertion{Batch: 0, State: "committed", Applied: intPtr(2), Forked: boolPtr(false)}))

	err := assertOutcome(batches, Assertion{Batch: 0, State: "committed", Skipped: intPtr(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 0 skipped = 1")
	assert.Contains(t, err.Error(), "[1] block 0 () discarded: boom")

	err = assertOutcome(batches, Assertion{Batch: 7, State: "committed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 2 batches ran")
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected interface{}
		actual   interface{}
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, int64(1), false},
		{"string", "a", "a", true},
		{"string from bytes", "a", []byte("a"), true},
		{"string mismatch", "a", "b", false},
		{"int vs int64", 5, int64(5), true},
		{"int vs string", 5, "5", false},
		{"uint64", uint64(7), int64(7), true},
		{"bool", true, true, true},
		{"bool from int", true, int64(1), true},
		{"false from int", false, int64(0), true},
		{"bool mismatch", false, int64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestBuildWhereClause_SortedAndParameterized(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]interface{}{"record_id": "r1", "end_block_num": 2})
	require.NoError(t, err)
	assert.Equal(t, "end_block_num = ? AND record_id = ?", sql)
	assert.Equal(t, []interface{}{int64(2), "r1"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestEvaluateAssertions_RequiresStore(t *testing.T) {
	result := NewResult()
	errs := EvaluateAssertions(result, []Assertion{{Type: AssertRowCount, Table: "users"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")

	errs = EvaluateAssertions(result, []Assertion{{Type: "bogus"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "bogus"`)
}

func TestFixtureBatchMatchesTestutil(t *testing.T) {
	h := &Harness{clock: testutil.NewLedgerClock(0)}
	evts, err := h.buildBatch(BatchStep{
		Block: &BlockStep{Num: 3, ID: "c"},
		Users: []UserFixture{{PublicKey: "pk", Name: "P", Role: "Admin", Timestamp: 9}},
	})
	require.NoError(t, err)

	want := testutil.Block(3, "c", testutil.UserChange(&model.User{
		PublicKey: "pk", Name: "P", Role: model.RoleAdmin, Timestamp: 9,
	}))
	assert.Equal(t, want, evts)
}
