// Package cas provides the content hashes recorded for conversion inputs
// and outputs. Every digest is reported as both SHA-256 and BLAKE3.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"regexp"

	"github.com/zeebo/blake3"
)

// hashPattern matches a valid lowercase 256-bit hex digest (64 characters).
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashResult contains both SHA-256 and BLAKE3 hashes for a blob.
type HashResult struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Hash computes both digests of data.
func Hash(data []byte) HashResult {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return HashResult{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
	}
}

// Hasher computes both digests over a stream.
type Hasher struct {
	sha hash.Hash
	b3  *blake3.Hasher
	w   io.Writer
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	h := &Hasher{sha: sha256.New(), b3: blake3.New()}
	h.w = io.MultiWriter(h.sha, h.b3)
	return h
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.w.Write(p)
}

// Sum returns the digests of everything written so far.
func (h *Hasher) Sum() HashResult {
	return HashResult{
		SHA256: hex.EncodeToString(h.sha.Sum(nil)),
		BLAKE3: hex.EncodeToString(h.b3.Sum(nil)),
	}
}

// IsValidHash reports whether s is a lowercase 64 character hex digest.
func IsValidHash(s string) bool {
	return hashPattern.MatchString(s)
}
