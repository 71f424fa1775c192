// Package model defines the value types shared by the decoder, the versioned
// store and the projector: block checkpoints, block ranges and the typed
// resources (users and records) materialized from ledger state.
//
// Resources form a closed union behind the Resource interface. Callers switch
// on the concrete type rather than inspecting untyped field maps.
package model
