// Package outbox persists local mutations until the sync orchestrator has
// applied them to the remote store.
//
// # Overview
//
// Every consumer write appends one entry {type, table, data, timestamp}. Push
// reads GetPending in timestamp order, applies each entry independently,
// marks the successful ones synced and finally purges them. Entries survive a
// full reset sync because the cache wipe skips the pending_sync table.
package outbox
