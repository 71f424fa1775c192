package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the state containers. They match the .proto definitions
// shared with the transaction processor.
const (
	containerEntries protowire.Number = 1

	userPublicKey protowire.Number = 1
	userName      protowire.Number = 2
	userTimestamp protowire.Number = 3
	userRole      protowire.Number = 4

	recordID               protowire.Number = 1
	recordName             protowire.Number = 2
	recordImageURL         protowire.Number = 3
	recordPrice            protowire.Number = 4
	recordForSale          protowire.Number = 5
	recordOwners           protowire.Number = 6
	recordCreator          protowire.Number = 7
	recordLocations        protowire.Number = 8
	recordCreatedTimestamp protowire.Number = 9
	recordUpdatedTimestamp protowire.Number = 10
	recordStolen           protowire.Number = 11

	ownerUserID    protowire.Number = 1
	ownerTimestamp protowire.Number = 2

	locationLatitude  protowire.Number = 1
	locationLongitude protowire.Number = 2
	locationTimestamp protowire.Number = 3
)

// FieldFunc handles one field of a message. It returns the number of bytes
// it consumed from b, or 0 to have the field skipped as unknown.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// WalkMessage iterates over the fields of an encoded message. Fields that fn
// declines are skipped, so newer writers can add fields without breaking
// older readers.
func WalkMessage(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		used, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(used))
			}
		}
		b = b[used:]
	}
	return nil
}

func expect(typ, want protowire.Type) error {
	if typ != want {
		return fmt.Errorf("unexpected wire type %d, want %d", typ, want)
	}
	return nil
}

// ConsumeString reads a length-delimited string field into dst.
func ConsumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if err := expect(typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// ConsumeBytes reads a length-delimited field, typically an embedded message.
func ConsumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if err := expect(typ, protowire.BytesType); err != nil {
		return nil, 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// ConsumeVarint reads a varint field.
func ConsumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if err := expect(typ, protowire.VarintType); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// The Append helpers omit zero values, as proto3 serializers do, except
// AppendMessage which always writes the field.

func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
