// Package metadata stores sync bookkeeping as key/value pairs in the local
// store: the pull cursor and the temporary lot number counter.
package metadata
