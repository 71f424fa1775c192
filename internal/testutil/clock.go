package testutil

import "sync"

// DefaultEpoch is the first timestamp a LedgerClock hands out.
const DefaultEpoch uint64 = 1_700_000_000

// LedgerClock stamps fixture users and records with ledger timestamps
// (seconds) that advance by one on every call.
//
// The same sequence of calls always yields the same timestamps, so golden
// snapshots stay byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type LedgerClock struct {
	mu    sync.Mutex
	epoch uint64
	now   uint64
}

// NewLedgerClock creates a clock starting at epoch. Zero means DefaultEpoch.
//
// The first call to Next() returns epoch+1.
func NewLedgerClock(epoch uint64) *LedgerClock {
	if epoch == 0 {
		epoch = DefaultEpoch
	}
	return &LedgerClock{epoch: epoch, now: epoch}
}

// Next advances the clock and returns the new timestamp.
func (c *LedgerClock) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Current returns the last timestamp handed out without advancing.
func (c *LedgerClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its epoch.
func (c *LedgerClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.epoch
}
