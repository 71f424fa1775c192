package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"fork_replaces_tail", "record_history"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"b": 1,
		"a": []any{true, "x"},
		"c": map[string]any{"z": nil, "y": int64(-3)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,"x"],"b":1,"c":{"y":-3,"z":null}}`, string(data))
}

func TestMarshalCanonical_StructTags(t *testing.T) {
	data, err := MarshalCanonical(BatchResult{Index: 2, State: "duplicate", Block: 5, BlockID: "xyz"})
	require.NoError(t, err)
	assert.Equal(t,
		`{"applied":0,"block_id":"xyz","block_num":5,"dropped":0,"forked":false,"index":2,"skipped":0,"state":"duplicate"}`,
		string(data))
}

func TestMarshalCanonical_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separator kept literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash before u2028", `\u2028`, `"\\u2028"`},
		{"control characters escaped", "a\nb", `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"price": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integer number")
}

func TestMarshalCanonical_MaxInt64(t *testing.T) {
	data, err := MarshalCanonical([]int64{9223372036854775807})
	require.NoError(t, err)
	assert.Equal(t, "[9223372036854775807]", string(data))
}

func TestUTF16SortedKeys(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 bytes but after it in UTF-16,
	// where the emoji is a surrogate pair starting 0xD83D.
	keys := utf16SortedKeys(map[string]any{"\U0001F600": 1, "\uFF61": 2, "a": 3})
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF61"}, keys)
}
