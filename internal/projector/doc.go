// Package projector turns ordered batches of ledger events into versioned
// rows in the store.
//
// Each batch describes one committed block. HandleEvents moves through a
// small state machine for it:
//
//	Idle -> Applying -> Committed
//	Idle -> ResolvingFork -> Applying -> Committed
//	Idle -> Duplicate
//	Idle -> Discarded
//
// A batch whose block is already stored under the same ID is a duplicate and
// leaves the store untouched. A batch whose height is stored under a
// different ID is a fork: everything at or above that height is rolled back
// before the new block is applied. Only the conflicting height is compared;
// a deeper reorganization shows up as a series of single-height forks as the
// ledger redelivers each block.
//
// All writes for one batch share a single transaction.
package projector
