// Package cli provides the interactive lotkeeper command-line client.
//
// App wires configuration, the local SQLite store, the remote store, the
// background task queue and the sync services, then runs a line-oriented
// REPL. Every command reads and writes the local store, so the client works
// the same offline; a connectivity monitor flips the mode and triggers a
// sync when the remote store comes back.
//
// With -demo the remotes are in-memory and seeded with a sample catalogue.
package cli
