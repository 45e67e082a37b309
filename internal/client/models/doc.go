// Package models defines the client-side records mirrored from the remote
// store, the partitions they live in, and the bookkeeping records used by the
// sync engine (outbox entries, conflicts, progress).
//
// Records are serialized with encoding/json using the remote column names as
// keys, so the same bytes are stored in the local cache, carried in outbox
// entries and written to the remote tables.
package models
