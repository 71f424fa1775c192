package events

// Event types delivered by the ledger's event subscription.
const (
	BlockCommitType = "sawtooth/block-commit"
	StateDeltaType  = "sawtooth/state-delta"
)

// Attribute keys of a block-commit event.
const (
	BlockNumKey = "block_num"
	BlockIDKey  = "block_id"
)

// Attribute is a key/value pair attached to an event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one tagged notification from the ledger. Block-commit events carry
// their payload in Attributes; state-delta events carry a serialized
// StateChangeList in Data.
type Event struct {
	Type       string      `json:"event_type"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Data       []byte      `json:"data,omitempty"`
}

// Attr returns the value of the first attribute named key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ChangeType says whether a state entry was written or removed.
type ChangeType int

const (
	ChangeUnset ChangeType = iota
	ChangeSet
	ChangeDelete
)

// StateChange is a raw write to one state address.
type StateChange struct {
	Address string
	Value   []byte
	Type    ChangeType
}

// BlockCommit builds a block-commit event.
func BlockCommit(blockNum int64, blockID string) Event {
	return Event{
		Type: BlockCommitType,
		Attributes: []Attribute{
			{Key: BlockIDKey, Value: blockID},
			{Key: BlockNumKey, Value: formatInt(blockNum)},
		},
	}
}

// StateDelta builds a state-delta event carrying changes.
func StateDelta(changes ...StateChange) Event {
	return Event{Type: StateDeltaType, Data: MarshalStateChangeList(changes)}
}
