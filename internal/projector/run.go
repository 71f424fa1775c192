package projector

import (
	"context"
	"errors"
	"io"

	"github.com/roach88/infinity/internal/events"
)

// RunStats tallies the batches seen by Run.
type RunStats struct {
	Batches    int `json:"batches"`
	Committed  int `json:"committed"`
	Duplicates int `json:"duplicates"`
	Forks      int `json:"forks"`
	Discarded  int `json:"discarded"`
	Failed     int `json:"failed"`
	Applied    int `json:"applied"`
	Skipped    int `json:"skipped"`
}

// Add folds one batch outcome into the totals.
func (s *RunStats) Add(out Outcome, err error) {
	s.Batches++
	s.Applied += out.Applied
	s.Skipped += out.Skipped
	if out.Forked && err == nil {
		s.Forks++
	}
	switch {
	case err != nil:
		s.Failed++
	case out.State == Committed:
		s.Committed++
	case out.State == Duplicate:
		s.Duplicates++
	default:
		s.Discarded++
	}
}

// Run feeds batches from src through HandleEvents until src returns io.EOF
// or ctx is canceled. Cancellation is only observed between batches.
//
// A failed batch is logged and counted, not retried; the ledger redelivers
// it on the next subscription. With WithStopOnError the first failure ends
// the run and is returned.
func (p *Projector) Run(ctx context.Context, src events.Source) (RunStats, error) {
	var stats RunStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		evts, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			p.log.Infow("event source exhausted",
				"batches", stats.Batches,
				"committed", stats.Committed,
				"failed", stats.Failed,
			)
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		out, err := p.HandleEvents(ctx, evts)
		stats.Add(out, err)
		if err != nil {
			if p.stopOnError {
				return stats, err
			}
			p.log.Warnw("continuing after failed batch", "batch", out.BatchID, "error", err)
		}
	}
}
