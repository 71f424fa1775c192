package projector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/codec"
	"github.com/roach88/infinity/internal/events"
	"github.com/roach88/infinity/internal/model"
	"github.com/roach88/infinity/internal/store"
)

// Outcome summarizes what HandleEvents did with one batch.
type Outcome struct {
	BatchID string           `json:"batch_id"`
	State   State            `json:"state"`
	Block   model.Checkpoint `json:"block"`
	// Forked is set when a different block was stored at the same height
	// and had to be rolled back.
	Forked bool `json:"forked,omitempty"`
	// Applied counts resource versions written.
	Applied int `json:"applied"`
	// Skipped counts state changes that could not be decoded.
	Skipped int `json:"skipped"`
	// Dropped counts state changes that belonged to other families.
	Dropped int `json:"dropped"`
	// Err is the reason a batch was discarded without failing.
	Err error `json:"-"`
}

// Projector applies event batches to a Store.
//
// Thread-safety: HandleEvents and Run may be called from any goroutine, but
// batches are applied one at a time in call order.
type Projector struct {
	mu          sync.Mutex
	store       Store
	log         *zap.SugaredLogger
	namespace   string
	decoder     *codec.Decoder
	ids         BatchIDGenerator
	stopOnError bool
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Projector) {
		if log != nil {
			p.log = log
		}
	}
}

// WithNamespace projects a different transaction family's address space.
func WithNamespace(namespace string) Option {
	return func(p *Projector) {
		if namespace != "" {
			p.namespace = namespace
		}
	}
}

// WithBatchIDs replaces the UUIDv7 batch ID generator.
func WithBatchIDs(gen BatchIDGenerator) Option {
	return func(p *Projector) {
		if gen != nil {
			p.ids = gen
		}
	}
}

// WithStopOnError makes Run return at the first failed batch instead of
// logging it and moving on.
func WithStopOnError(stop bool) Option {
	return func(p *Projector) {
		p.stopOnError = stop
	}
}

// New creates a Projector writing to the SQLite store s.
func New(s *store.Store, opts ...Option) *Projector {
	return NewWithStore(sqlStore{s: s}, opts...)
}

// NewWithStore creates a Projector over any Store implementation.
func NewWithStore(s Store, opts ...Option) *Projector {
	p := &Projector{
		store:     s,
		log:       zap.NewNop().Sugar(),
		namespace: addressing.Namespace,
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.decoder = codec.NewDecoder(p.namespace)
	return p
}

// HandleEvents applies one batch.
//
// A batch without a block-commit event is Discarded and the store is not
// touched; if it carried state changes, Outcome.Err says so and the returned
// error is still nil. A batch for a block already stored under the same ID
// is a Duplicate. Anything else is applied in one transaction and ends
// Committed. On error nothing from the batch is kept.
func (p *Projector) HandleEvents(ctx context.Context, evts []events.Event) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Outcome{BatchID: p.ids.Generate(), State: Idle}
	log := p.log.With("batch", out.BatchID)

	view, err := events.Adapt(evts, p.namespace)
	out.Dropped = view.Dropped
	switch {
	case errors.Is(err, events.ErrInconsistentBatch):
		log.Warnw("discarding batch", "changes", len(view.Changes), "error", err)
		out.State = Discarded
		out.Err = err
		return out, nil
	case err != nil:
		out.State = Discarded
		return out, fmt.Errorf("adapt batch: %w", err)
	case !view.HasBlock:
		log.Debugw("batch has no block commit", "events", len(evts))
		out.State = Discarded
		return out, nil
	}

	out.Block = view.Block
	log = log.With("block_num", view.Block.BlockNum, "block_id", model.ShortID(view.Block.BlockID))

	if err := ctx.Err(); err != nil {
		out.State = Discarded
		return out, err
	}

	if err := p.apply(ctx, log, view, &out); err != nil {
		log.Errorw("batch failed", "state", out.State, "error", err)
		out.State = Discarded
		return out, fmt.Errorf("block %d (%s): %w", view.Block.BlockNum, model.ShortID(view.Block.BlockID), err)
	}
	return out, nil
}

// apply runs the transactional part of HandleEvents. out.State tracks the
// furthest step reached.
func (p *Projector) apply(ctx context.Context, log *zap.SugaredLogger, view events.View, out *Outcome) error {
	block := view.Block

	tx, err := p.store.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := tx.FetchCheckpoint(ctx, block.BlockNum)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.BlockID == block.BlockID {
			out.State = Duplicate
			log.Infow("block already applied")
			return tx.Commit()
		}

		out.State = ResolvingFork
		out.Forked = true
		log.Warnw("fork detected, rolling back",
			"stored_block_id", model.ShortID(existing.BlockID),
		)
		if err := tx.RollbackFrom(ctx, block.BlockNum); err != nil {
			return err
		}
	}

	out.State = Applying
	if err := tx.InsertCheckpoint(ctx, block); err != nil {
		return err
	}

	for _, change := range view.Changes {
		// The view keeps history; a removed entry only stops changing.
		if change.Type == events.ChangeDelete {
			log.Debugw("ignoring delete", "address", change.Address)
			continue
		}
		decoded, err := p.decoder.Decode(change.Address, change.Value)
		if err != nil {
			var decodeErr *codec.DecodeError
			if !errors.As(err, &decodeErr) {
				return err
			}
			out.Skipped++
			log.Warnw("skipping undecodable state change", "address", change.Address, "error", err)
			continue
		}
		if decoded.Kind == model.KindNone {
			continue
		}

		for _, res := range decoded.Resources {
			if err := tx.AppendVersion(ctx, res, block.BlockNum, model.MaxBlockNum); err != nil {
				return err
			}
			out.Applied++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	out.State = Committed
	log.Infow("applied block",
		"forked", out.Forked,
		"applied", out.Applied,
		"skipped", out.Skipped,
		"dropped", out.Dropped,
	)
	return nil
}
