package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of mutation carried by an outbox entry.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// OutboxEntry is a local mutation waiting to be applied remotely.
// Table holds the remote table name; Data is the record JSON (for deletes it
// carries at least the id). RecordID mirrors the id inside Data.
type OutboxEntry struct {
	ID        string          `json:"id"`
	Type      Operation       `json:"type"`
	Table     string          `json:"table"`
	RecordID  string          `json:"-"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Synced    bool            `json:"synced"`
}

// ConflictRecord keeps both sides of a record whose pulled remote version
// arrived while the local copy still had unpushed changes.
type ConflictRecord struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id"`
	LocalData json.RawMessage `json:"local_data"`
	CloudData json.RawMessage `json:"cloud_data"`
	Timestamp time.Time       `json:"timestamp"`
	Resolved  bool            `json:"resolved"`
}

// SyncProgress is published after each priority bootstrap phase.
type SyncProgress struct {
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}
