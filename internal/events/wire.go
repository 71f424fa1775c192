package events

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/infinity/internal/codec"
)

// Field numbers of the ledger's events.proto and transaction_receipt.proto.
const (
	eventListEvents protowire.Number = 1

	eventType       protowire.Number = 1
	eventAttributes protowire.Number = 2
	eventData       protowire.Number = 3

	attributeKey   protowire.Number = 1
	attributeValue protowire.Number = 2

	changeListChanges protowire.Number = 1

	changeAddress protowire.Number = 1
	changeValue   protowire.Number = 2
	changeType    protowire.Number = 3
)

// UnmarshalEventList decodes an EventList message as delivered on the
// subscription stream.
func UnmarshalEventList(b []byte) ([]Event, error) {
	evts := []Event{}
	err := codec.WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != eventListEvents {
			return 0, nil
		}
		msg, n, err := codec.ConsumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		evt, err := unmarshalEvent(msg)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", len(evts), err)
		}
		evts = append(evts, evt)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal event list: %w", err)
	}
	return evts, nil
}

func unmarshalEvent(b []byte) (Event, error) {
	var evt Event
	err := codec.WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case eventType:
			return codec.ConsumeString(typ, b, &evt.Type)
		case eventAttributes:
			msg, n, err := codec.ConsumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			var attr Attribute
			err = codec.WalkMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case attributeKey:
					return codec.ConsumeString(typ, b, &attr.Key)
				case attributeValue:
					return codec.ConsumeString(typ, b, &attr.Value)
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			evt.Attributes = append(evt.Attributes, attr)
			return n, nil
		case eventData:
			data, n, err := codec.ConsumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			evt.Data = append([]byte(nil), data...)
			return n, nil
		}
		return 0, nil
	})
	return evt, err
}

// MarshalEventList encodes evts as an EventList message.
func MarshalEventList(evts []Event) []byte {
	var b []byte
	for _, evt := range evts {
		var msg []byte
		msg = codec.AppendString(msg, eventType, evt.Type)
		for _, attr := range evt.Attributes {
			var a []byte
			a = codec.AppendString(a, attributeKey, attr.Key)
			a = codec.AppendString(a, attributeValue, attr.Value)
			msg = codec.AppendMessage(msg, eventAttributes, a)
		}
		if len(evt.Data) > 0 {
			msg = codec.AppendMessage(msg, eventData, evt.Data)
		}
		b = codec.AppendMessage(b, eventListEvents, msg)
	}
	return b
}

// UnmarshalStateChangeList decodes the payload of a state-delta event.
func UnmarshalStateChangeList(b []byte) ([]StateChange, error) {
	changes := []StateChange{}
	err := codec.WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != changeListChanges {
			return 0, nil
		}
		msg, n, err := codec.ConsumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		var sc StateChange
		err = codec.WalkMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case changeAddress:
				return codec.ConsumeString(typ, b, &sc.Address)
			case changeValue:
				v, n, err := codec.ConsumeBytes(typ, b)
				if err != nil {
					return 0, err
				}
				sc.Value = append([]byte(nil), v...)
				return n, nil
			case changeType:
				v, n, err := codec.ConsumeVarint(typ, b)
				sc.Type = ChangeType(v)
				return n, err
			}
			return 0, nil
		})
		if err != nil {
			return 0, fmt.Errorf("state change %d: %w", len(changes), err)
		}
		changes = append(changes, sc)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal state change list: %w", err)
	}
	return changes, nil
}

// MarshalStateChangeList encodes changes as a StateChangeList message.
func MarshalStateChangeList(changes []StateChange) []byte {
	var b []byte
	for _, sc := range changes {
		var msg []byte
		msg = codec.AppendString(msg, changeAddress, sc.Address)
		if len(sc.Value) > 0 {
			msg = codec.AppendMessage(msg, changeValue, sc.Value)
		}
		msg = codec.AppendVarint(msg, changeType, uint64(sc.Type))
		b = codec.AppendMessage(b, changeListChanges, msg)
	}
	return b
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
