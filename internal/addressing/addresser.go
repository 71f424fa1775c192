// Package addressing maps infinity resources onto ledger state addresses.
//
// An address is 70 hex characters: a 6 character family namespace, a 2
// character resource infix and 62 characters of the SHA-512 digest of the
// resource's natural key.
package addressing

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const (
	FamilyName    = "infinity"
	FamilyVersion = "0.1"

	// NamespaceLen is the number of hex characters identifying a family.
	NamespaceLen = 6
	// AddressLen is the full length of a state address.
	AddressLen = 70

	UserInfix   = "00"
	RecordInfix = "01"
)

// Namespace is the address prefix owned by the infinity family.
var Namespace = NamespaceFor(FamilyName)

// Space classifies an address.
type Space int

const (
	SpaceOtherFamily Space = iota
	SpaceUser
	SpaceRecord
	// SpaceUnknown is inside the namespace but carries an infix this
	// version does not understand.
	SpaceUnknown
)

func (s Space) String() string {
	switch s {
	case SpaceUser:
		return "user"
	case SpaceRecord:
		return "record"
	case SpaceUnknown:
		return "unknown"
	default:
		return "other-family"
	}
}

// NamespaceFor derives the namespace prefix of any transaction family.
func NamespaceFor(family string) string {
	return hash(family)[:NamespaceLen]
}

// UserAddress returns the state address holding the user with publicKey.
func UserAddress(publicKey string) string {
	return Namespace + UserInfix + hash(publicKey)[:AddressLen-NamespaceLen-2]
}

// RecordAddress returns the state address holding the record with recordID.
func RecordAddress(recordID string) string {
	return Namespace + RecordInfix + hash(recordID)[:AddressLen-NamespaceLen-2]
}

// InNamespace reports whether address belongs to namespace.
func InNamespace(address, namespace string) bool {
	return strings.HasPrefix(address, namespace)
}

// Classify returns the space of address relative to namespace.
func Classify(address, namespace string) Space {
	if !InNamespace(address, namespace) {
		return SpaceOtherFamily
	}
	end := len(namespace) + 2
	if len(address) < end {
		return SpaceUnknown
	}
	switch address[len(namespace):end] {
	case UserInfix:
		return SpaceUser
	case RecordInfix:
		return SpaceRecord
	default:
		return SpaceUnknown
	}
}

func hash(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}
