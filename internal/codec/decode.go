package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/model"
)

// DecodeError reports a state entry inside the infinity namespace that could
// not be turned into resources. It is fatal for that entry only.
type DecodeError struct {
	Address string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Address, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoded is the result of decoding one state entry.
type Decoded struct {
	Kind      model.Kind
	Resources []model.Resource
}

// Decoder turns (address, payload) pairs into typed resources for one
// namespace. The zero value is not usable; call NewDecoder.
type Decoder struct {
	namespace string
}

// NewDecoder returns a decoder for namespace. An empty namespace selects the
// infinity family.
func NewDecoder(namespace string) *Decoder {
	if namespace == "" {
		namespace = addressing.Namespace
	}
	return &Decoder{namespace: namespace}
}

// Decode decodes payload using the infinity namespace.
func Decode(address string, payload []byte) (Decoded, error) {
	return NewDecoder("").Decode(address, payload)
}

// Decode is pure: the same address and payload always produce the same
// result. Addresses of other families decode to an empty result.
func (d *Decoder) Decode(address string, payload []byte) (Decoded, error) {
	switch addressing.Classify(address, d.namespace) {
	case addressing.SpaceOtherFamily:
		return Decoded{Kind: model.KindNone}, nil

	case addressing.SpaceUser:
		users, err := UnmarshalUsers(payload)
		if err != nil {
			return Decoded{}, &DecodeError{Address: address, Reason: "malformed user container", Err: err}
		}
		res := make([]model.Resource, len(users))
		for i, u := range users {
			res[i] = u
		}
		return Decoded{Kind: model.KindUser, Resources: res}, nil

	case addressing.SpaceRecord:
		records, err := UnmarshalRecords(payload)
		if err != nil {
			return Decoded{}, &DecodeError{Address: address, Reason: "malformed record container", Err: err}
		}
		res := make([]model.Resource, len(records))
		for i, r := range records {
			res[i] = r
		}
		return Decoded{Kind: model.KindRecord, Resources: res}, nil

	default:
		return Decoded{}, &DecodeError{Address: address, Reason: "unknown resource type"}
	}
}

// UnmarshalUsers decodes a UserContainer.
func UnmarshalUsers(b []byte) ([]*model.User, error) {
	users := []*model.User{}
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != containerEntries {
			return 0, nil
		}
		msg, n, err := ConsumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		u, err := unmarshalUser(msg)
		if err != nil {
			return 0, fmt.Errorf("user entry %d: %w", len(users), err)
		}
		users = append(users, u)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func unmarshalUser(b []byte) (*model.User, error) {
	u := &model.User{}
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case userPublicKey:
			return ConsumeString(typ, b, &u.PublicKey)
		case userName:
			return ConsumeString(typ, b, &u.Name)
		case userTimestamp:
			v, n, err := ConsumeVarint(typ, b)
			u.Timestamp = v
			return n, err
		case userRole:
			v, n, err := ConsumeVarint(typ, b)
			u.Role = model.Role(int32(v))
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UnmarshalRecords decodes a RecordContainer.
func UnmarshalRecords(b []byte) ([]*model.Record, error) {
	records := []*model.Record{}
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != containerEntries {
			return 0, nil
		}
		msg, n, err := ConsumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		r, err := unmarshalRecord(msg)
		if err != nil {
			return 0, fmt.Errorf("record entry %d: %w", len(records), err)
		}
		records = append(records, r)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func unmarshalRecord(b []byte) (*model.Record, error) {
	r := &model.Record{Owners: []model.Owner{}, Locations: []model.Location{}}
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case recordID:
			return ConsumeString(typ, b, &r.RecordID)
		case recordName:
			return ConsumeString(typ, b, &r.Name)
		case recordImageURL:
			return ConsumeString(typ, b, &r.ImageURL)
		case recordPrice:
			return ConsumeString(typ, b, &r.Price)
		case recordForSale:
			v, n, err := ConsumeVarint(typ, b)
			r.ForSale = protowire.DecodeBool(v)
			return n, err
		case recordStolen:
			v, n, err := ConsumeVarint(typ, b)
			r.Stolen = protowire.DecodeBool(v)
			return n, err
		case recordCreatedTimestamp:
			v, n, err := ConsumeVarint(typ, b)
			r.CreatedTimestamp = v
			return n, err
		case recordUpdatedTimestamp:
			v, n, err := ConsumeVarint(typ, b)
			r.UpdatedTimestamp = v
			return n, err
		case recordOwners, recordCreator:
			msg, n, err := ConsumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			o, err := unmarshalOwner(msg)
			if err != nil {
				return 0, err
			}
			if num == recordCreator {
				r.Creator = &o
			} else {
				r.Owners = append(r.Owners, o)
			}
			return n, nil
		case recordLocations:
			msg, n, err := ConsumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			loc, err := unmarshalLocation(msg)
			if err != nil {
				return 0, err
			}
			r.Locations = append(r.Locations, loc)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalOwner(b []byte) (model.Owner, error) {
	var o model.Owner
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case ownerUserID:
			return ConsumeString(typ, b, &o.UserID)
		case ownerTimestamp:
			v, n, err := ConsumeVarint(typ, b)
			o.Timestamp = v
			return n, err
		}
		return 0, nil
	})
	return o, err
}

func unmarshalLocation(b []byte) (model.Location, error) {
	var loc model.Location
	err := WalkMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case locationLatitude:
			v, n, err := ConsumeVarint(typ, b)
			loc.Latitude = int64(v)
			return n, err
		case locationLongitude:
			v, n, err := ConsumeVarint(typ, b)
			loc.Longitude = int64(v)
			return n, err
		case locationTimestamp:
			v, n, err := ConsumeVarint(typ, b)
			loc.Timestamp = v
			return n, err
		}
		return 0, nil
	})
	return loc, err
}
