// Package harness runs projection scenarios against a fresh in-memory store.
//
// A scenario is a list of event batches plus assertions. Each batch is built
// into the events the ledger would deliver, handed to a real projector, and
// its outcome recorded. After the last batch the materialized view is
// snapshotted and the assertions are evaluated against it.
//
// # Scenario Format
//
//	name: fork_at_five
//	description: "A different block at height 5 replaces 5 and 6"
//	batches:
//	  - block: { num: 5, id: abc }
//	    users:
//	      - { public_key: pk-alice, name: Alice, role: Creator }
//	  - block: { num: 6, id: def }
//	    records:
//	      - record_id: guitar
//	        name: Guitar
//	        owners: [{ user_id: pk-alice }]
//	  - block: { num: 5, id: xyz }
//	assertions:
//	  - type: outcome
//	    batch: 2
//	    state: committed
//	    forked: true
//	  - type: row_count
//	    table: records
//	    count: 0
//	  - type: no_violations
//
// A batch without a block carries state changes only and is discarded by
// the projector. raw entries write hex bytes at an explicit address, or at
// an address owned by another transaction family when family is set.
// Timestamps left out of fixtures are drawn from a deterministic clock.
//
// # Assertions
//
//   - outcome: state name of one batch, optionally forked, applied, skipped
//   - final_state: exactly one row matching where holds the expect values
//   - row_count: number of rows matching where
//   - no_violations: store.CheckInvariants reports nothing
//
// # Golden Files
//
// RunWithGolden snapshots the batch outcomes and every row of the view as
// canonical JSON and compares it with testdata/golden/<name>.golden using
// goldie. Regenerate with:
//
//	go test ./internal/harness -update
package harness
