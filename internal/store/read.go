package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/infinity/internal/model"
)

// BlockCurrent selects the currently valid versions in point-in-time reads.
const BlockCurrent = model.MaxBlockNum - 1

// UserVersion is a user as of some block, with the range of the version.
type UserVersion struct {
	model.User
	model.BlockRange
}

// RecordVersion is a record as of some block, with its location and owner
// history at that block.
type RecordVersion struct {
	model.Record
	model.BlockRange
}

// UserRow is a raw users row.
type UserRow struct {
	PublicKey string `db:"public_key" json:"public_key"`
	Name      string `db:"name" json:"name"`
	Role      string `db:"role" json:"role"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	model.BlockRange
}

// RecordRow is a raw records row.
type RecordRow struct {
	RecordID         string `db:"record_id" json:"record_id"`
	Name             string `db:"name" json:"name"`
	Price            string `db:"price" json:"price"`
	ForSale          bool   `db:"isForSale" json:"is_for_sale"`
	ImageURL         string `db:"image_url" json:"image_url"`
	CreatedTimestamp int64  `db:"created_timestamp" json:"created_timestamp"`
	UpdatedTimestamp int64  `db:"updated_timestamp" json:"updated_timestamp"`
	Stolen           bool   `db:"is_stolen" json:"is_stolen"`
	model.BlockRange
}

// LocationRow is a raw record_locations row.
type LocationRow struct {
	RecordID  string `db:"record_id" json:"record_id"`
	Latitude  int64  `db:"latitude" json:"latitude"`
	Longitude int64  `db:"longitude" json:"longitude"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	model.BlockRange
}

// OwnerRow is a raw record_owners row.
type OwnerRow struct {
	RecordID  string `db:"record_id" json:"record_id"`
	UserID    string `db:"user_id" json:"user_id"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	model.BlockRange
}

// Snapshot is every row of the materialized view in a deterministic order.
type Snapshot struct {
	Blocks    []model.Checkpoint `json:"blocks"`
	Users     []UserRow          `json:"users"`
	Records   []RecordRow        `json:"records"`
	Locations []LocationRow      `json:"record_locations"`
	Owners    []OwnerRow         `json:"record_owners"`
}

// Checkpoint returns the committed checkpoint at blockNum, or nil.
func (s *Store) Checkpoint(ctx context.Context, blockNum int64) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := s.db.GetContext(ctx, &cp, `SELECT block_num, block_id FROM blocks WHERE block_num = ?`, blockNum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read checkpoint", err)
	}
	return &cp, nil
}

// LastKnownBlocks returns up to count checkpoints, highest first. A
// subscriber resuming after a restart offers these to the ledger so delivery
// picks up from the newest block both sides agree on.
func (s *Store) LastKnownBlocks(ctx context.Context, count int) ([]model.Checkpoint, error) {
	if count <= 0 {
		return []model.Checkpoint{}, nil
	}
	blocks := []model.Checkpoint{}
	err := s.db.SelectContext(ctx, &blocks,
		`SELECT block_num, block_id FROM blocks ORDER BY block_num DESC LIMIT ?`, count)
	if err != nil {
		return nil, storageErr("read last known blocks", err)
	}
	return blocks, nil
}

// UserAt returns the version of the user valid at block, or nil.
func (s *Store) UserAt(ctx context.Context, publicKey string, block int64) (*UserVersion, error) {
	var row UserRow
	err := s.db.GetContext(ctx, &row, `
		SELECT public_key, name, role, timestamp, start_block_num, end_block_num
		FROM users
		WHERE public_key = ? AND start_block_num <= ? AND end_block_num > ?
		ORDER BY start_block_num DESC, id DESC
		LIMIT 1
	`, publicKey, block, block)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read user", err)
	}

	role, err := model.ParseRole(row.Role)
	if err != nil {
		return nil, storageErr("read user", err)
	}
	return &UserVersion{
		User: model.User{
			PublicKey: row.PublicKey,
			Name:      row.Name,
			Role:      role,
			Timestamp: uint64(row.Timestamp),
		},
		BlockRange: row.BlockRange,
	}, nil
}

const recordColumns = `record_id, name, price, isForSale, image_url, created_timestamp,
	updated_timestamp, is_stolen, start_block_num, end_block_num`

// RecordAt returns the version of the record valid at block, or nil.
func (s *Store) RecordAt(ctx context.Context, recordID string, block int64) (*RecordVersion, error) {
	var row RecordRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+recordColumns+`
		FROM records
		WHERE record_id = ? AND start_block_num <= ? AND end_block_num > ?
		ORDER BY start_block_num DESC, id DESC
		LIMIT 1
	`, recordID, block, block)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read record", err)
	}
	return s.withChildren(ctx, row)
}

// Records returns every record valid at block, ordered by record ID.
func (s *Store) Records(ctx context.Context, block int64) ([]RecordVersion, error) {
	rows := []RecordRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+recordColumns+`
		FROM records
		WHERE start_block_num <= ? AND end_block_num > ?
		ORDER BY record_id ASC, id ASC
	`, block, block)
	if err != nil {
		return nil, storageErr("read records", err)
	}

	out := make([]RecordVersion, 0, len(rows))
	for _, row := range rows {
		rv, err := s.withChildren(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, nil
}

// withChildren loads the location and owner rows that share row's range.
func (s *Store) withChildren(ctx context.Context, row RecordRow) (*RecordVersion, error) {
	locs := []LocationRow{}
	if err := s.db.SelectContext(ctx, &locs, `
		SELECT record_id, latitude, longitude, timestamp, start_block_num, end_block_num
		FROM record_locations
		WHERE record_id = ? AND start_block_num = ? AND end_block_num = ?
		ORDER BY id ASC
	`, row.RecordID, row.Start, row.End); err != nil {
		return nil, storageErr("read record locations", err)
	}

	owners := []OwnerRow{}
	if err := s.db.SelectContext(ctx, &owners, `
		SELECT record_id, user_id, timestamp, start_block_num, end_block_num
		FROM record_owners
		WHERE record_id = ? AND start_block_num = ? AND end_block_num = ?
		ORDER BY id ASC
	`, row.RecordID, row.Start, row.End); err != nil {
		return nil, storageErr("read record owners", err)
	}

	rec := model.Record{
		RecordID:         row.RecordID,
		Name:             row.Name,
		ImageURL:         row.ImageURL,
		Price:            row.Price,
		ForSale:          row.ForSale,
		Owners:           make([]model.Owner, 0, len(owners)),
		Locations:        make([]model.Location, 0, len(locs)),
		CreatedTimestamp: uint64(row.CreatedTimestamp),
		UpdatedTimestamp: uint64(row.UpdatedTimestamp),
		Stolen:           row.Stolen,
	}
	for _, l := range locs {
		rec.Locations = append(rec.Locations, model.Location{
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			Timestamp: uint64(l.Timestamp),
		})
	}
	for _, o := range owners {
		rec.Owners = append(rec.Owners, model.Owner{UserID: o.UserID, Timestamp: uint64(o.Timestamp)})
	}
	return &RecordVersion{Record: rec, BlockRange: row.BlockRange}, nil
}

// Snapshot dumps the whole view. Rows are ordered by natural key, then start
// block, then insertion.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Blocks:    []model.Checkpoint{},
		Users:     []UserRow{},
		Records:   []RecordRow{},
		Locations: []LocationRow{},
		Owners:    []OwnerRow{},
	}

	queries := []struct {
		table string
		dest  any
		query string
	}{
		{"blocks", &snap.Blocks, `SELECT block_num, block_id FROM blocks ORDER BY block_num`},
		{"users", &snap.Users, `SELECT public_key, name, role, timestamp, start_block_num, end_block_num
			FROM users ORDER BY public_key, start_block_num, id`},
		{"records", &snap.Records, `SELECT ` + recordColumns + `
			FROM records ORDER BY record_id, start_block_num, id`},
		{"record_locations", &snap.Locations, `SELECT record_id, latitude, longitude, timestamp, start_block_num, end_block_num
			FROM record_locations ORDER BY record_id, start_block_num, id`},
		{"record_owners", &snap.Owners, `SELECT record_id, user_id, timestamp, start_block_num, end_block_num
			FROM record_owners ORDER BY record_id, start_block_num, id`},
	}
	for _, q := range queries {
		if err := s.db.SelectContext(ctx, q.dest, q.query); err != nil {
			return nil, storageErr(fmt.Sprintf("snapshot %s", q.table), err)
		}
	}
	return snap, nil
}
