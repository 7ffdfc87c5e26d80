// Package schedule is the deferred-delivery state machine. It claims due
// records in batches, gates them through expiry and condition checks, drives
// the delivery attempt, applies retry backoff on failure, and spawns the next
// occurrence of recurring records on success.
//
// The engine assumes claiming is atomic at the store: a record moves
// pending -> processing only if it is still pending, so concurrent batch
// passes never double-process. Everything after the claim is plain sequential
// logic over the claimed set.
package schedule
