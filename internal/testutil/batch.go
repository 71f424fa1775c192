package testutil

import (
	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/codec"
	"github.com/roach88/infinity/internal/events"
	"github.com/roach88/infinity/internal/model"
)

// Block builds the batch the ledger delivers for one committed block: a
// block-commit event, followed by a state-delta event when there are
// changes.
func Block(num int64, id string, changes ...events.StateChange) []events.Event {
	evts := []events.Event{events.BlockCommit(num, id)}
	if len(changes) > 0 {
		evts = append(evts, events.StateDelta(changes...))
	}
	return evts
}

// DeltaOnly builds a batch with state changes but no block commit.
func DeltaOnly(changes ...events.StateChange) []events.Event {
	return []events.Event{events.StateDelta(changes...)}
}

// UserChange writes u at its own address.
func UserChange(u *model.User) events.StateChange {
	return events.StateChange{
		Address: addressing.UserAddress(u.PublicKey),
		Value:   codec.MarshalUsers(u),
		Type:    events.ChangeSet,
	}
}

// RecordChange writes r at its own address.
func RecordChange(r *model.Record) events.StateChange {
	return events.StateChange{
		Address: addressing.RecordAddress(r.RecordID),
		Value:   codec.MarshalRecords(r),
		Type:    events.ChangeSet,
	}
}

// RawChange writes arbitrary bytes at address.
func RawChange(address string, value []byte) events.StateChange {
	return events.StateChange{Address: address, Value: value, Type: events.ChangeSet}
}

// ForeignAddress returns an address owned by family rather than infinity.
func ForeignAddress(family, key string) string {
	ns := addressing.NamespaceFor(family)
	addr := addressing.UserAddress(key)
	return ns + addr[addressing.NamespaceLen:]
}

// FixedBatchIDGenerator returns the same batch ID every time, so logs and
// outcomes of a scenario are byte-identical between runs.
//
// Thread-safety: FixedBatchIDGenerator is stateless and safe for concurrent use.
type FixedBatchIDGenerator struct {
	id string
}

// NewFixedBatchIDGenerator creates the generator. If id is empty, Generate()
// returns "test-batch".
func NewFixedBatchIDGenerator(id string) *FixedBatchIDGenerator {
	if id == "" {
		id = "test-batch"
	}
	return &FixedBatchIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedBatchIDGenerator) Generate() string {
	return g.id
}
