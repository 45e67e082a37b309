package models

// TemporaryLotNumberSeed is the first temporary lot number handed out while
// offline. Later numbers decrease from here, so they never meet a positive
// number assigned by the remote store.
const TemporaryLotNumberSeed int64 = -1_000_000

// IsTemporaryLotNumber reports whether n is a placeholder awaiting reconciliation.
func IsTemporaryLotNumber(n int64) bool {
	return n < 0
}
