package codec

import (
	"github.com/roach88/infinity/internal/model"
)

// MarshalUsers encodes users as a UserContainer, the payload stored at a
// user address.
func MarshalUsers(users ...*model.User) []byte {
	var b []byte
	for _, u := range users {
		b = AppendMessage(b, containerEntries, marshalUser(u))
	}
	return b
}

// MarshalRecords encodes records as a RecordContainer.
func MarshalRecords(records ...*model.Record) []byte {
	var b []byte
	for _, r := range records {
		b = AppendMessage(b, containerEntries, marshalRecord(r))
	}
	return b
}

func marshalUser(u *model.User) []byte {
	var b []byte
	b = AppendString(b, userPublicKey, u.PublicKey)
	b = AppendString(b, userName, u.Name)
	b = AppendVarint(b, userTimestamp, u.Timestamp)
	b = AppendVarint(b, userRole, uint64(u.Role))
	return b
}

func marshalRecord(r *model.Record) []byte {
	var b []byte
	b = AppendString(b, recordID, r.RecordID)
	b = AppendString(b, recordName, r.Name)
	b = AppendString(b, recordImageURL, r.ImageURL)
	b = AppendString(b, recordPrice, r.Price)
	b = AppendBool(b, recordForSale, r.ForSale)
	for _, o := range r.Owners {
		b = AppendMessage(b, recordOwners, marshalOwner(o))
	}
	if r.Creator != nil {
		b = AppendMessage(b, recordCreator, marshalOwner(*r.Creator))
	}
	for _, loc := range r.Locations {
		b = AppendMessage(b, recordLocations, marshalLocation(loc))
	}
	b = AppendVarint(b, recordCreatedTimestamp, r.CreatedTimestamp)
	b = AppendVarint(b, recordUpdatedTimestamp, r.UpdatedTimestamp)
	b = AppendBool(b, recordStolen, r.Stolen)
	return b
}

func marshalOwner(o model.Owner) []byte {
	var b []byte
	b = AppendString(b, ownerUserID, o.UserID)
	b = AppendVarint(b, ownerTimestamp, o.Timestamp)
	return b
}

func marshalLocation(loc model.Location) []byte {
	var b []byte
	b = AppendVarint(b, locationLatitude, uint64(loc.Latitude))
	b = AppendVarint(b, locationLongitude, uint64(loc.Longitude))
	b = AppendVarint(b, locationTimestamp, loc.Timestamp)
	return b
}
