// Package codec decodes infinity state entries into typed resources.
//
// State at a user or record address is a protobuf container with a single
// repeated "entries" field. Containers are decoded directly from the wire
// format with protowire; unknown fields are skipped so the processor can add
// fields without breaking the projector.
//
// Decoding is pure. Addresses owned by other transaction families yield an
// empty result, while an unrecognized resource infix inside the infinity
// namespace is reported as a *DecodeError.
package codec
