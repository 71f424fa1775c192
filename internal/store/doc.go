// Package store is the block-range versioned materialized view of ledger
// state, backed by SQLite.
//
// Every resource row carries [start_block_num, end_block_num). The current
// version of a resource has end_block_num = model.MaxBlockNum. Superseding a
// version closes it at the new version's start block; rolling back a fork
// deletes rows that started at or above the fork height and reopens rows
// that were closed there.
//
// # Batches
//
// All writes for one block happen inside a single Tx obtained from Begin.
// Either the whole block lands or none of it does.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All statements are parameterized.
package store
