package harness

import (
	"github.com/roach88/infinity/internal/projector"
	"github.com/roach88/infinity/internal/store"
)

// BatchResult records what the projector did with one scenario batch.
type BatchResult struct {
	Index   int    `json:"index"`
	State   string `json:"state"`
	Block   int64  `json:"block_num"`
	BlockID string `json:"block_id"`
	Forked  bool   `json:"forked"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Dropped int    `json:"dropped"`
	Err     string `json:"error,omitempty"`
}

func newBatchResult(index int, out projector.Outcome, err error) BatchResult {
	br := BatchResult{
		Index:   index,
		State:   out.State.String(),
		Block:   out.Block.BlockNum,
		BlockID: out.Block.BlockID,
		Forked:  out.Forked,
		Applied: out.Applied,
		Skipped: out.Skipped,
		Dropped: out.Dropped,
	}
	switch {
	case err != nil:
		br.Err = err.Error()
	case out.Err != nil:
		br.Err = out.Err.Error()
	}
	return br
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Batches holds one entry per scenario batch, in delivery order.
	Batches []BatchResult `json:"batches"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the materialized view after the last batch.
	Snapshot *store.Snapshot `json:"snapshot,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Batches: []BatchResult{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
