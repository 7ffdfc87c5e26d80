// Package email defines the composed-message value object shared by every
// layer of mailcraft, plus recipient normalization and attachment handling.
//
// A Message is a plain value with explicit fields. It is built by the facade
// builder, optionally snapshotted to storage, and handed opaquely to a
// sender.Provider. There are no lifecycle hooks: header injection and
// tracking rewrites happen before handoff by mutating the value.
//
// Recipient input arrives in several legacy shapes (single string, list of
// strings, comma-separated string, address→name map). NormalizeRecipients is
// the single point where those shapes collapse into []Address; business logic
// above the storage boundary only ever sees the canonical type.
package email
