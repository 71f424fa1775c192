package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/infinity/internal/store"
)

// validIdentifier restricts table and column names taken from scenarios,
// since identifiers are spliced into SQL text.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed assertion, with the batch outcomes of
// the run when they help explain it.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Batches  []BatchResult // Batch outcomes for debugging context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%s assertion failed\n", e.Type)
	fmt.Fprintf(&buf, "  want: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  got:  %s\n", e.Actual)

	if len(e.Batches) > 0 {
		fmt.Fprintf(&buf, "\nBatches:\n")
		for _, b := range e.Batches {
			fmt.Fprintf(&buf, "  [%d] block %d (%s) %s", b.Index, b.Block, b.BlockID, b.State)
			if b.Err != "" {
				fmt.Fprintf(&buf, ": %s", b.Err)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertOutcome checks the recorded outcome of one batch.
func assertOutcome(batches []BatchResult, assertion Assertion) error {
	if assertion.Batch < 0 || assertion.Batch >= len(batches) {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("batch %d", assertion.Batch),
			Actual:   fmt.Sprintf("only %d batches ran", len(batches)),
			Batches:  batches,
		}
	}
	got := batches[assertion.Batch]

	fail := func(field string, want, have any) error {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("batch %d %s = %v", assertion.Batch, field, want),
			Actual:   fmt.Sprintf("batch %d %s = %v", assertion.Batch, field, have),
			Batches:  batches,
		}
	}

	if got.State != assertion.State {
		return fail("state", assertion.State, got.State)
	}
	if assertion.Forked != nil && got.Forked != *assertion.Forked {
		return fail("forked", *assertion.Forked, got.Forked)
	}
	if assertion.Applied != nil && got.Applied != *assertion.Applied {
		return fail("applied", *assertion.Applied, got.Applied)
	}
	if assertion.Skipped != nil && got.Skipped != *assertion.Skipped {
		return fail("skipped", *assertion.Skipped, got.Skipped)
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected values. Values are bound as parameters;
// identifiers are validated against validIdentifier.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	query, args, err := selectQuery("*", assertion)
	if err != nil {
		return err
	}

	rows, err := st.DB().QueryxContext(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "readable table " + assertion.Table,
			Actual:   err.Error(),
		}
	}
	defer rows.Close()

	cond := describeWhere(assertion.Where)
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("a row in %s matching %s", assertion.Table, cond),
			Actual:   "no matching row",
		}
	}

	row := make(map[string]interface{})
	if err := rows.MapScan(row); err != nil {
		return fmt.Errorf("map row: %w", err)
	}

	// Several matches would make the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("one row in %s matching %s", assertion.Table, cond),
			Actual:   "several rows matched",
		}
	}

	for _, col := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[col]
		got, ok := row[col]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q", col),
				Actual:   fmt.Sprintf("columns %v", sortedKeys(row)),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v (%T)", col, want, want),
				Actual:   fmt.Sprintf("%s = %v (%T)", col, got, got),
			}
		}
	}

	return nil
}

// assertRowCount checks how many rows of the table match Where.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	query, args, err := selectQuery("COUNT(*)", assertion)
	if err != nil {
		return err
	}

	var n int
	if err := st.DB().GetContext(ctx, &n, query, args...); err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: "countable table " + assertion.Table,
			Actual:   err.Error(),
		}
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s matching %s", assertion.Count, assertion.Table, describeWhere(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// assertNoViolations runs the store invariant checks.
func assertNoViolations(ctx context.Context, st *store.Store) error {
	violations, err := st.CheckInvariants(ctx)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return &AssertionError{
		Type:     AssertNoViolations,
		Expected: "no invariant violations",
		Actual:   strings.Join(lines, "; "),
	}
}

// selectQuery builds "SELECT cols FROM table [WHERE ...]" for an assertion.
func selectQuery(cols string, assertion Assertion) (string, []interface{}, error) {
	switch {
	case assertion.Table == "":
		return "", nil, fmt.Errorf("%s: table is required", assertion.Type)
	case !validIdentifier.MatchString(assertion.Table):
		return "", nil, fmt.Errorf("invalid table name %q", assertion.Table)
	}

	cond, args, err := buildWhereClause(assertion.Where)
	if err != nil {
		return "", nil, err
	}
	if cond == "" {
		return "SELECT " + cols + " FROM " + assertion.Table, nil, nil
	}
	return "SELECT " + cols + " FROM " + assertion.Table + " WHERE " + cond, args, nil
}

// buildWhereClause turns an equality map into "a = ? AND b = ?" with one
// bound argument per column, in column order.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	var conds []string
	var args []interface{}
	for _, col := range sortedKeys(where) {
		if !validIdentifier.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name %q in where", col)
		}
		conds = append(conds, col+" = ?")
		args = append(args, toSQLValue(where[col]))
	}
	return strings.Join(conds, " AND "), args, nil
}

// toSQLValue converts a YAML scalar to a SQL-compatible value.
func toSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	case string, int64, bool:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// describeWhere renders conditions for failure messages.
func describeWhere(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(all rows)"
	}
	var b strings.Builder
	for i, col := range sortedKeys(where) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", col, where[col])
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a scanned column. SQLite hands
// back int64 for integers and may return booleans as either bool or int64
// depending on the column's declared type.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && s == exp
	case int:
		return intEquals(int64(exp), actual)
	case int64:
		return intEquals(exp, actual)
	case uint64:
		return intEquals(int64(exp), actual)
	case bool:
		switch a := actual.(type) {
		case bool:
			return a == exp
		case int64:
			return (a != 0) == exp
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func intEquals(exp int64, actual interface{}) bool {
	switch a := actual.(type) {
	case int64:
		return exp == a
	case int:
		return exp == int64(a)
	}
	return false
}

// AssertionContext gives state assertions access to the scenario's store.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks each assertion in order and returns one message
// per failure. actx may be nil when only outcome assertions are used.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutcome:
			err = assertOutcome(result.Batches, assertion)
		case AssertFinalState, AssertRowCount, AssertNoViolations:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertFinalState:
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			case AssertRowCount:
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			default:
				err = assertNoViolations(actx.Ctx, actx.Store)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
