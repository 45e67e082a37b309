// Package common defines shared sentinel errors and result types used across
// the lotkeeper client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a transient network failure: the remote store or the
	// object storage could not be reached. The next sync pass retries.
	ErrUnavailable = errors.New("remote unavailable")

	// ErrLocalWrite marks a failed write to the local durable store.
	ErrLocalWrite = errors.New("local store write failed")

	// ErrSchemaVersion is reported when the persisted local schema cannot be
	// reconciled with the migrations known to this build.
	ErrSchemaVersion = errors.New("incompatible local schema version")

	// Validation errors.
	ErrInvalidRecord = errors.New("invalid record")
	ErrUnknownIndex  = errors.New("unknown index")
)
