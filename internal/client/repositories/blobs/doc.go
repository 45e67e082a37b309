// Package blobs stores photo bytes in the local store. Every blob carries a
// BLAKE2b-256 checksum that is verified when the blob is read back.
package blobs
