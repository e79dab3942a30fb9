// Package merkle implements a content-addressed DAG over a stable hash
// function. The hash is used by the file synchronizer to detect changes and
// by the pipeline to mint deterministic collection names; chunk ids are
// computed by the chunker itself.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// H is a content hash: the first 16 hex characters (64 bits) of a SHA-256
// digest. Truncated deliberately — ids are meant to be short and
// human-scannable, and collision risk at indexing scale is negligible.
type H string

// Hash returns the content hash of data.
func Hash(data []byte) H {
	sum := sha256.Sum256(data)
	return H(hex.EncodeToString(sum[:])[:16])
}

// HashString is a convenience wrapper for string inputs.
func HashString(s string) H {
	return Hash([]byte(s))
}
