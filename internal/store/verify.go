package store

import (
	"context"
	"fmt"

	"github.com/roach88/infinity/internal/model"
)

// Invariant rules reported by CheckInvariants.
const (
	RuleMultipleOpen      = "multiple-open"
	RuleOverlap           = "overlap"
	RuleInvertedRange     = "inverted-range"
	RuleDetachedChild     = "detached-child"
	RuleMissingCheckpoint = "missing-checkpoint"
)

// Violation is one broken invariant in the materialized view.
type Violation struct {
	Rule   string `json:"rule"`
	Table  string `json:"table"`
	Key    string `json:"key"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %s: %s", v.Rule, v.Table, v.Key, v.Detail)
}

// parentTables are the tables whose rows are versioned per natural key.
var parentTables = []struct{ table, key string }{
	{"users", "public_key"},
	{"records", "record_id"},
}

// CheckInvariants scans the view for rows that break block-range
// versioning. An empty result means the view is consistent.
func (s *Store) CheckInvariants(ctx context.Context) ([]Violation, error) {
	violations := []Violation{}

	for _, p := range parentTables {
		var open []struct {
			Key   string `db:"k"`
			Count int    `db:"n"`
		}
		if err := s.db.SelectContext(ctx, &open, `
			SELECT `+p.key+` AS k, COUNT(*) AS n FROM `+p.table+`
			WHERE end_block_num = ?
			GROUP BY `+p.key+` HAVING COUNT(*) > 1
			ORDER BY `+p.key,
			model.MaxBlockNum,
		); err != nil {
			return nil, storageErr("check "+p.table, err)
		}
		for _, o := range open {
			violations = append(violations, Violation{
				Rule:   RuleMultipleOpen,
				Table:  p.table,
				Key:    o.Key,
				Detail: fmt.Sprintf("%d open versions", o.Count),
			})
		}

		var overlaps []struct {
			Key    string `db:"k"`
			AStart int64  `db:"a_start"`
			AEnd   int64  `db:"a_end"`
			BStart int64  `db:"b_start"`
			BEnd   int64  `db:"b_end"`
		}
		if err := s.db.SelectContext(ctx, &overlaps, `
			SELECT a.`+p.key+` AS k,
				a.start_block_num AS a_start, a.end_block_num AS a_end,
				b.start_block_num AS b_start, b.end_block_num AS b_end
			FROM `+p.table+` a
			JOIN `+p.table+` b ON a.`+p.key+` = b.`+p.key+` AND a.id < b.id
			WHERE a.start_block_num < a.end_block_num
				AND b.start_block_num < b.end_block_num
				AND a.start_block_num < b.end_block_num
				AND b.start_block_num < a.end_block_num
			ORDER BY a.`+p.key+`, a.id, b.id
		`); err != nil {
			return nil, storageErr("check "+p.table, err)
		}
		for _, o := range overlaps {
			violations = append(violations, Violation{
				Rule:   RuleOverlap,
				Table:  p.table,
				Key:    o.Key,
				Detail: fmt.Sprintf("[%d, %d) overlaps [%d, %d)", o.AStart, o.AEnd, o.BStart, o.BEnd),
			})
		}
	}

	for _, table := range versionedTables {
		key := "record_id"
		if table == "users" {
			key = "public_key"
		}

		var rows []struct {
			Key string `db:"k"`
			model.BlockRange
		}
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT `+key+` AS k, start_block_num, end_block_num FROM `+table+`
			WHERE start_block_num > end_block_num
			ORDER BY id
		`); err != nil {
			return nil, storageErr("check "+table, err)
		}
		for _, r := range rows {
			violations = append(violations, Violation{
				Rule:   RuleInvertedRange,
				Table:  table,
				Key:    r.Key,
				Detail: fmt.Sprintf("start %d after end %d", r.Start, r.End),
			})
		}

		rows = nil
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT t.`+key+` AS k, t.start_block_num, t.end_block_num FROM `+table+` t
			WHERE NOT EXISTS (SELECT 1 FROM blocks b WHERE b.block_num = t.start_block_num)
			ORDER BY t.id
		`); err != nil {
			return nil, storageErr("check "+table, err)
		}
		for _, r := range rows {
			violations = append(violations, Violation{
				Rule:   RuleMissingCheckpoint,
				Table:  table,
				Key:    r.Key,
				Detail: fmt.Sprintf("no checkpoint at start block %d", r.Start),
			})
		}
	}

	for _, child := range []string{"record_locations", "record_owners"} {
		var rows []struct {
			Key string `db:"k"`
			model.BlockRange
		}
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT c.record_id AS k, c.start_block_num, c.end_block_num FROM `+child+` c
			WHERE NOT EXISTS (
				SELECT 1 FROM records r
				WHERE r.record_id = c.record_id
					AND r.start_block_num = c.start_block_num
					AND r.end_block_num = c.end_block_num
			)
			ORDER BY c.id
		`); err != nil {
			return nil, storageErr("check "+child, err)
		}
		for _, r := range rows {
			violations = append(violations, Violation{
				Rule:   RuleDetachedChild,
				Table:  child,
				Key:    r.Key,
				Detail: fmt.Sprintf("no record version spans [%d, %d)", r.Start, r.End),
			})
		}
	}

	return violations, nil
}
