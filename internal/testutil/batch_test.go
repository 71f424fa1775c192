package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/events"
	"github.com/roach88/infinity/internal/model"
)

func TestBlock_AdaptsToView(t *testing.T) {
	u := &model.User{PublicKey: "pk1", Name: "alice", Role: model.RoleUser, Timestamp: 1}
	batch := Block(5, "abc", UserChange(u))
	require.Len(t, batch, 2)

	view, err := events.Adapt(batch, "")
	require.NoError(t, err)
	assert.True(t, view.HasBlock)
	assert.Equal(t, model.Checkpoint{BlockNum: 5, BlockID: "abc"}, view.Block)
	require.Len(t, view.Changes, 1)
	assert.Equal(t, addressing.UserAddress("pk1"), view.Changes[0].Address)
}

func TestBlock_NoChanges(t *testing.T) {
	batch := Block(1, "a")
	require.Len(t, batch, 1)
	assert.Equal(t, events.BlockCommitType, batch[0].Type)
}

func TestDeltaOnly_IsInconsistent(t *testing.T) {
	r := &model.Record{RecordID: "r1", Name: "Guitar"}
	_, err := events.Adapt(DeltaOnly(RecordChange(r)), "")
	assert.ErrorIs(t, err, events.ErrInconsistentBatch)
}

func TestForeignAddress_OutsideNamespace(t *testing.T) {
	addr := ForeignAddress("intkey", "k")
	assert.Len(t, addr, addressing.AddressLen)
	assert.False(t, addressing.InNamespace(addr, addressing.Namespace))
	assert.Equal(t, addressing.SpaceOtherFamily, addressing.Classify(addr, addressing.Namespace))
}

func TestFixedBatchIDGenerator(t *testing.T) {
	assert.Equal(t, "b-1", NewFixedBatchIDGenerator("b-1").Generate())
	assert.Equal(t, "test-batch", NewFixedBatchIDGenerator("").Generate())
}
