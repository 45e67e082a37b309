// Package photos provides the typed photo metadata partition of the local
// store. Unlike the generic records partitions it keeps the local-only synced
// flag as a real column so unsynced photos can be listed cheaply.
package photos
