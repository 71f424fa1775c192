package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/infinity/internal/model"
)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// applyBlock writes one block the way the projector does: rollback on a
// conflicting checkpoint, then the checkpoint, then each resource.
func applyBlock(t *testing.T, s *Store, num int64, id string, resources ...model.Resource) {
	t.Helper()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	existing, err := tx.FetchCheckpoint(ctx, num)
	if err != nil {
		t.Fatalf("FetchCheckpoint(%d) failed: %v", num, err)
	}
	if existing != nil {
		if err := tx.RollbackFrom(ctx, num); err != nil {
			t.Fatalf("RollbackFrom(%d) failed: %v", num, err)
		}
	}
	if err := tx.InsertCheckpoint(ctx, model.Checkpoint{BlockNum: num, BlockID: id}); err != nil {
		t.Fatalf("InsertCheckpoint(%d) failed: %v", num, err)
	}
	for _, res := range resources {
		if err := tx.AppendVersion(ctx, res, num, model.MaxBlockNum); err != nil {
			t.Fatalf("AppendVersion(%s) failed: %v", res.NaturalKey(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

func testUser(key, name string, role model.Role) *model.User {
	return &model.User{PublicKey: key, Name: name, Role: role, Timestamp: 1000}
}

func testRecord(id, name string, owners ...string) *model.Record {
	r := &model.Record{
		RecordID:         id,
		Name:             name,
		Price:            "10",
		Owners:           []model.Owner{},
		Locations:        []model.Location{},
		CreatedTimestamp: 1000,
	}
	for i, o := range owners {
		r.Owners = append(r.Owners, model.Owner{UserID: o, Timestamp: uint64(1000 + i)})
	}
	return r
}
