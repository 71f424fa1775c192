package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/model"
)

func sampleRecord() *model.Record {
	return &model.Record{
		RecordID: "rec-1",
		Name:     "Widget",
		ImageURL: "https://example.com/w.png",
		Price:    "10",
		ForSale:  true,
		Owners: []model.Owner{
			{UserID: "pk-alice", Timestamp: 100},
			{UserID: "pk-bob", Timestamp: 200},
		},
		Creator: &model.Owner{UserID: "pk-alice", Timestamp: 100},
		Locations: []model.Location{
			{Latitude: 43650000, Longitude: -79380000, Timestamp: 100},
		},
		CreatedTimestamp: 100,
		UpdatedTimestamp: 200,
	}
}

func TestDecode_User(t *testing.T) {
	user := &model.User{PublicKey: "pk-alice", Name: "Alice", Role: model.RoleCreator, Timestamp: 42}
	address := addressing.UserAddress(user.PublicKey)

	decoded, err := Decode(address, MarshalUsers(user))
	require.NoError(t, err)

	assert.Equal(t, model.KindUser, decoded.Kind)
	require.Len(t, decoded.Resources, 1)
	assert.Equal(t, user, decoded.Resources[0])
}

func TestDecode_Record(t *testing.T) {
	record := sampleRecord()
	address := addressing.RecordAddress(record.RecordID)

	decoded, err := Decode(address, MarshalRecords(record))
	require.NoError(t, err)

	assert.Equal(t, model.KindRecord, decoded.Kind)
	require.Len(t, decoded.Resources, 1)
	got := decoded.Resources[0].(*model.Record)
	assert.Equal(t, record, got)
	assert.Equal(t, int64(-79380000), got.Locations[0].Longitude)
}

func TestDecode_MultipleEntries(t *testing.T) {
	a := &model.User{PublicKey: "a", Name: "A"}
	b := &model.User{PublicKey: "b", Name: "B", Role: model.RoleQuerier}

	decoded, err := Decode(addressing.UserAddress("a"), MarshalUsers(a, b))
	require.NoError(t, err)
	require.Len(t, decoded.Resources, 2)
	assert.Equal(t, "a", decoded.Resources[0].NaturalKey())
	assert.Equal(t, "b", decoded.Resources[1].NaturalKey())
}

func TestDecode_EmptyPayload(t *testing.T) {
	decoded, err := Decode(addressing.RecordAddress("gone"), nil)
	require.NoError(t, err)
	assert.Equal(t, model.KindRecord, decoded.Kind)
	assert.Empty(t, decoded.Resources)
}

func TestDecode_OtherFamilyIsEmpty(t *testing.T) {
	address := addressing.NamespaceFor("intkey") + "00" + "abcdef"

	decoded, err := Decode(address, []byte{0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, model.KindNone, decoded.Kind)
	assert.Empty(t, decoded.Resources)
}

func TestDecode_UnknownInfix(t *testing.T) {
	address := addressing.Namespace + "09" + "abcdef"

	_, err := Decode(address, nil)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, address, decodeErr.Address)
	assert.Equal(t, "unknown resource type", decodeErr.Reason)
}

func TestDecode_MalformedPayload(t *testing.T) {
	// entries field claiming 10 bytes with only 1 present
	payload := []byte{0x0a, 0x0a, 0x01}

	_, err := Decode(addressing.UserAddress("pk"), payload)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, decodeErr.Error(), "malformed user container")
	assert.NotNil(t, decodeErr.Unwrap())
}

func TestDecode_WrongWireType(t *testing.T) {
	// entries field encoded as a varint
	payload := protowire.AppendTag(nil, 1, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 7)

	_, err := Decode(addressing.RecordAddress("r"), payload)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	user := marshalUser(&model.User{PublicKey: "pk", Name: "Name"})
	user = protowire.AppendTag(user, 99, protowire.VarintType)
	user = protowire.AppendVarint(user, 12345)

	var container []byte
	container = AppendMessage(container, containerEntries, user)
	container = protowire.AppendTag(container, 15, protowire.BytesType)
	container = protowire.AppendString(container, "future")

	decoded, err := Decode(addressing.UserAddress("pk"), container)
	require.NoError(t, err)
	require.Len(t, decoded.Resources, 1)
	assert.Equal(t, &model.User{PublicKey: "pk", Name: "Name"}, decoded.Resources[0])
}

func TestDecode_Deterministic(t *testing.T) {
	address := addressing.RecordAddress("rec-1")
	payload := MarshalRecords(sampleRecord())

	first, err := Decode(address, payload)
	require.NoError(t, err)
	second, err := Decode(address, payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecoder_CustomNamespace(t *testing.T) {
	ns := addressing.NamespaceFor("infinity-test")
	d := NewDecoder(ns)

	decoded, err := d.Decode(ns+"00"+"aa", MarshalUsers(&model.User{PublicKey: "pk"}))
	require.NoError(t, err)
	assert.Equal(t, model.KindUser, decoded.Kind)

	// the default namespace is foreign to this decoder
	decoded, err = d.Decode(addressing.UserAddress("pk"), nil)
	require.NoError(t, err)
	assert.Equal(t, model.KindNone, decoded.Kind)
}
