package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventList_RoundTrip(t *testing.T) {
	evts := []Event{
		BlockCommit(12, "block-12"),
		StateDelta(StateChange{Address: "addr", Value: []byte("payload"), Type: ChangeSet}),
	}

	decoded, err := UnmarshalEventList(MarshalEventList(evts))
	require.NoError(t, err)
	assert.Equal(t, evts, decoded)
}

func TestStateChangeList_DeleteHasNoValue(t *testing.T) {
	changes := []StateChange{{Address: "addr", Type: ChangeDelete}}

	decoded, err := UnmarshalStateChangeList(MarshalStateChangeList(changes))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, ChangeDelete, decoded[0].Type)
	assert.Empty(t, decoded[0].Value)
}

func TestUnmarshalEventList_Truncated(t *testing.T) {
	b := MarshalEventList([]Event{BlockCommit(1, "x")})

	_, err := UnmarshalEventList(b[:len(b)-2])
	assert.Error(t, err)
}

func TestEvent_Attr(t *testing.T) {
	evt := BlockCommit(3, "id")

	v, ok := evt.Attr(BlockNumKey)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = evt.Attr("missing")
	assert.False(t, ok)
}
