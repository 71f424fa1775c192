package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/infinity/internal/model"
)

// versionedTables lists every block-range versioned table. Rollback touches
// them all.
var versionedTables = []string{"users", "records", "record_locations", "record_owners"}

// Tx is the write handle for one block. Obtain one with Begin, then finish
// with Commit or Rollback. Rollback after Commit is a no-op, so
//
//	tx, err := s.Begin(ctx)
//	...
//	defer tx.Rollback()
//
// is safe.
type Tx struct {
	tx   *sqlx.Tx
	done bool
}

// Begin starts the transaction for one batch.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	return &Tx{tx: tx}, nil
}

// FetchCheckpoint returns the checkpoint stored at blockNum, or nil when the
// height has not been seen.
func (t *Tx) FetchCheckpoint(ctx context.Context, blockNum int64) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := t.tx.GetContext(ctx, &cp, `SELECT block_num, block_id FROM blocks WHERE block_num = ?`, blockNum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("fetch checkpoint", err)
	}
	return &cp, nil
}

// InsertCheckpoint records cp as canonical at its height. A second insert
// at the same height fails; callers roll back the fork first.
func (t *Tx) InsertCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO blocks (block_num, block_id) VALUES (?, ?)`,
		cp.BlockNum, cp.BlockID,
	)
	return storageErr("insert checkpoint", err)
}

// RollbackFrom discards everything learned at or above blockNum: versions
// that started there are deleted, versions closed there are reopened, and
// the checkpoints are removed.
func (t *Tx) RollbackFrom(ctx context.Context, blockNum int64) error {
	for _, table := range versionedTables {
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE start_block_num >= ?`, blockNum,
		); err != nil {
			return storageErr("rollback "+table, err)
		}
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE `+table+` SET end_block_num = ? WHERE end_block_num >= ? AND end_block_num != ?`,
			model.MaxBlockNum, blockNum, model.MaxBlockNum,
		); err != nil {
			return storageErr("reopen "+table, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM blocks WHERE block_num >= ?`, blockNum); err != nil {
		return storageErr("rollback blocks", err)
	}
	return nil
}

// AppendVersion closes the open version of res (if any) at start and inserts
// res as the version valid for [start, end).
func (t *Tx) AppendVersion(ctx context.Context, res model.Resource, start, end int64) error {
	switch r := res.(type) {
	case *model.User:
		return t.appendUser(ctx, r, start, end)
	case *model.Record:
		return t.appendRecord(ctx, r, start, end)
	default:
		return &StorageError{Op: "append version", Err: fmt.Errorf("unsupported resource %T", res)}
	}
}

func (t *Tx) closeOpen(ctx context.Context, table, keyColumn, key string, at int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE `+table+` SET end_block_num = ? WHERE `+keyColumn+` = ? AND end_block_num = ?`,
		at, key, model.MaxBlockNum,
	)
	return storageErr("close "+table, err)
}

func (t *Tx) appendUser(ctx context.Context, u *model.User, start, end int64) error {
	if err := t.closeOpen(ctx, "users", "public_key", u.PublicKey, start); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (public_key, name, role, timestamp, start_block_num, end_block_num)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		u.PublicKey,
		u.Name,
		u.Role.String(),
		int64(u.Timestamp),
		start,
		end,
	)
	return storageErr("insert user", err)
}

// appendRecord versions the record row and its location and owner history
// together. Child rows share the parent's range and are only ever closed
// along with it.
func (t *Tx) appendRecord(ctx context.Context, r *model.Record, start, end int64) error {
	for _, table := range []string{"records", "record_locations", "record_owners"} {
		if err := t.closeOpen(ctx, table, "record_id", r.RecordID, start); err != nil {
			return err
		}
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO records
		(record_id, name, price, isForSale, image_url, created_timestamp, updated_timestamp, is_stolen, start_block_num, end_block_num)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RecordID,
		r.Name,
		r.Price,
		r.ForSale,
		r.ImageURL,
		int64(r.CreatedTimestamp),
		int64(r.UpdatedTimestamp),
		r.Stolen,
		start,
		end,
	); err != nil {
		return storageErr("insert record", err)
	}

	for _, loc := range r.Locations {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO record_locations (record_id, latitude, longitude, timestamp, start_block_num, end_block_num)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.RecordID, loc.Latitude, loc.Longitude, int64(loc.Timestamp), start, end); err != nil {
			return storageErr("insert record location", err)
		}
	}

	for _, owner := range r.Owners {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO record_owners (record_id, user_id, timestamp, start_block_num, end_block_num)
			VALUES (?, ?, ?, ?, ?)
		`, r.RecordID, owner.UserID, int64(owner.Timestamp), start, end); err != nil {
			return storageErr("insert record owner", err)
		}
	}

	return nil
}

// Commit makes the batch durable.
func (t *Tx) Commit() error {
	if t.done {
		return &StorageError{Op: "commit", Err: sql.ErrTxDone}
	}
	t.done = true
	return storageErr("commit", t.tx.Commit())
}

// Rollback discards the batch. It does nothing once the Tx has finished.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return storageErr("rollback", t.tx.Rollback())
}
