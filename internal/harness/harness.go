package harness

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/infinity/internal/events"
	"github.com/roach88/infinity/internal/model"
	"github.com/roach88/infinity/internal/projector"
	"github.com/roach88/infinity/internal/store"
	"github.com/roach88/infinity/internal/testutil"
)

// Harness feeds scenario batches through a real projector.
// It runs with a deterministic clock and batch IDs so that snapshots are
// reproducible.
type Harness struct {
	store *store.Store
	proj  *projector.Projector
	clock *testutil.LedgerClock
	log   *zap.SugaredLogger
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	log *zap.SugaredLogger
}

// WithLogger routes projector and store logs to log. The default discards them.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *runConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build each batch and hand it to the projector, recording the outcome
// 3. Snapshot the materialized view
// 4. Evaluate assertions
//
// A batch that fails is recorded in the result and does not stop the run.
// The returned error is reserved for harness failures.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(":memory:", store.WithLogger(cfg.log))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		proj: projector.New(st,
			projector.WithLogger(cfg.log),
			projector.WithNamespace(scenario.Namespace),
			projector.WithBatchIDs(testutil.NewFixedBatchIDGenerator(scenario.BatchID)),
		),
		clock: testutil.NewLedgerClock(scenario.Epoch),
		log:   cfg.log.With("scenario", scenario.Name),
	}

	result := NewResult()
	for i, step := range scenario.Batches {
		evts, err := h.buildBatch(step)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		out, err := h.proj.HandleEvents(ctx, evts)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		br := newBatchResult(i, out, err)
		h.log.Debugw("batch", "index", i, "state", br.State, "error", br.Err)
		result.Batches = append(result.Batches, br)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	result.Snapshot = snap

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// buildBatch turns a scenario step into the events the ledger would send.
func (h *Harness) buildBatch(step BatchStep) ([]events.Event, error) {
	var changes []events.StateChange
	for _, u := range step.Users {
		user, err := h.user(u)
		if err != nil {
			return nil, err
		}
		changes = append(changes, testutil.UserChange(user))
	}
	for _, r := range step.Records {
		changes = append(changes, testutil.RecordChange(h.record(r)))
	}
	for _, r := range step.Raw {
		value, err := hex.DecodeString(r.Hex)
		if err != nil {
			return nil, fmt.Errorf("raw hex: %w", err)
		}
		addr := r.Address
		if r.Family != "" {
			addr = testutil.ForeignAddress(r.Family, r.Key)
		}
		changes = append(changes, testutil.RawChange(addr, value))
	}

	if step.Block == nil {
		return testutil.DeltaOnly(changes...), nil
	}
	return testutil.Block(step.Block.Num, step.Block.ID, changes...), nil
}

func (h *Harness) user(f UserFixture) (*model.User, error) {
	role := model.RoleUser
	if f.Role != "" {
		r, err := model.ParseRole(f.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	return &model.User{
		PublicKey: f.PublicKey,
		Name:      f.Name,
		Role:      role,
		Timestamp: h.stamp(f.Timestamp),
	}, nil
}

func (h *Harness) record(f RecordFixture) *model.Record {
	r := &model.Record{
		RecordID:         f.RecordID,
		Name:             f.Name,
		ImageURL:         f.ImageURL,
		Price:            f.Price,
		ForSale:          f.ForSale,
		Stolen:           f.Stolen,
		CreatedTimestamp: h.stamp(f.Created),
		UpdatedTimestamp: f.Updated,
		Owners:           make([]model.Owner, 0, len(f.Owners)),
		Locations:        make([]model.Location, 0, len(f.Locations)),
	}
	for _, o := range f.Owners {
		r.Owners = append(r.Owners, model.Owner{UserID: o.UserID, Timestamp: h.stamp(o.Timestamp)})
	}
	for _, l := range f.Locations {
		r.Locations = append(r.Locations, model.Location{
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			Timestamp: h.stamp(l.Timestamp),
		})
	}
	return r
}

// stamp keeps an explicit timestamp and draws one from the clock otherwise.
func (h *Harness) stamp(ts uint64) uint64 {
	if ts != 0 {
		return ts
	}
	return h.clock.Next()
}
