package model

import (
	"fmt"
	"math"
)

// MaxBlockNum is the end_block_num of the currently valid version of a
// resource. It is the largest value an SQLite INTEGER column can hold.
const MaxBlockNum int64 = math.MaxInt64

// Kind identifies which resource family a state entry decodes into.
type Kind int

const (
	// KindNone marks state owned by another transaction family.
	KindNone Kind = iota
	KindUser
	KindRecord
)

// String returns the kind as a lowercase name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUser:
		return "user"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Checkpoint records a block the store believes is canonical at its height.
type Checkpoint struct {
	BlockNum int64  `db:"block_num" json:"block_num"`
	BlockID  string `db:"block_id" json:"block_id"`
}

// String renders the checkpoint with a shortened block ID for logs.
func (c Checkpoint) String() string {
	return fmt.Sprintf("%d (%s)", c.BlockNum, ShortID(c.BlockID))
}

// ShortID truncates a block ID to its first eight characters.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Resource is a decoded state entry. The concrete type is either *User or
// *Record.
type Resource interface {
	Kind() Kind
	// NaturalKey is the identifier shared by every version of the resource.
	NaturalKey() string
}

// Role is a user's permission level on the ledger.
type Role int32

const (
	RoleAdmin Role = iota
	RoleCreator
	RoleUser
	RoleQuerier
)

var roleNames = map[Role]string{
	RoleAdmin:   "Admin",
	RoleCreator: "Creator",
	RoleUser:    "User",
	RoleQuerier: "Querier",
}

// String returns the symbolic enum name, e.g. "Creator".
func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Role(%d)", int32(r))
}

// ParseRole converts a symbolic name back into a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// User is an account registered on the ledger, keyed by public key.
type User struct {
	PublicKey string `json:"public_key"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Timestamp uint64 `json:"timestamp"`
}

func (u *User) Kind() Kind         { return KindUser }
func (u *User) NaturalKey() string { return u.PublicKey }

// Location is one entry in a record's location history.
type Location struct {
	Latitude  int64  `json:"latitude"`
	Longitude int64  `json:"longitude"`
	Timestamp uint64 `json:"timestamp"`
}

// Owner is one entry in a record's ownership history.
type Owner struct {
	UserID    string `json:"user_id"`
	Timestamp uint64 `json:"timestamp"`
}

// Record is a tracked asset. Locations and Owners accumulate over the
// record's lifetime; each state entry carries the full history.
type Record struct {
	RecordID         string     `json:"record_id"`
	Name             string     `json:"name"`
	ImageURL         string     `json:"image_url,omitempty"`
	Price            string     `json:"price"`
	ForSale          bool       `json:"is_for_sale"`
	Owners           []Owner    `json:"owners"`
	Creator          *Owner     `json:"creator,omitempty"`
	Locations        []Location `json:"locations"`
	CreatedTimestamp uint64     `json:"created_timestamp"`
	UpdatedTimestamp uint64     `json:"updated_timestamp,omitempty"`
	Stolen           bool       `json:"is_stolen,omitempty"`
}

func (r *Record) Kind() Kind         { return KindRecord }
func (r *Record) NaturalKey() string { return r.RecordID }

// BlockRange is the half-open [Start, End) validity interval of a version.
type BlockRange struct {
	Start int64 `db:"start_block_num" json:"start_block_num"`
	End   int64 `db:"end_block_num" json:"end_block_num"`
}

// Open reports whether the range is the currently valid version.
func (b BlockRange) Open() bool { return b.End == MaxBlockNum }

// Contains reports whether block falls inside the range.
func (b BlockRange) Contains(block int64) bool {
	return b.Start <= block && block < b.End
}

// Overlaps reports whether two ranges share at least one block.
func (b BlockRange) Overlaps(o BlockRange) bool {
	return b.Start < o.End && o.Start < b.End
}
