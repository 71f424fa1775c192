// Package events adapts raw ledger event batches for the projector.
//
// A batch delivered by the ledger subscription holds one block-commit event
// and zero or more state-delta events. Adapt extracts the block identity and
// the state changes that belong to the infinity namespace, dropping changes
// made by other transaction families that share the stream.
//
// The package also carries the protobuf wire codecs for EventList and
// StateChangeList, and Source implementations that feed batches to the
// projector in delivery order.
package events
