package projector

import (
	"context"

	"github.com/roach88/infinity/internal/model"
	"github.com/roach88/infinity/internal/store"
)

// Tx is the per-batch write handle the projector drives.
type Tx interface {
	FetchCheckpoint(ctx context.Context, blockNum int64) (*model.Checkpoint, error)
	InsertCheckpoint(ctx context.Context, cp model.Checkpoint) error
	RollbackFrom(ctx context.Context, blockNum int64) error
	AppendVersion(ctx context.Context, res model.Resource, start, end int64) error
	Commit() error
	Rollback() error
}

// Store opens one Tx per batch.
type Store interface {
	BeginBatch(ctx context.Context) (Tx, error)
}

// sqlStore adapts *store.Store to Store.
type sqlStore struct {
	s *store.Store
}

func (a sqlStore) BeginBatch(ctx context.Context) (Tx, error) {
	tx, err := a.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
