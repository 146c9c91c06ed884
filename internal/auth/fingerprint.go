package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives stable, non-reversible identifiers from API keys so
// plaintext keys never appear in cache keys or logs.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter returns a Fingerprinter keyed with secret.
// blake2b accepts keys up to 64 bytes; longer secrets are hashed down first.
func NewFingerprinter(secret string) *Fingerprinter {
	k := []byte(secret)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}
	return &Fingerprinter{key: k}
}

// Sum returns a 32 hex char keyed digest of input.
func (f *Fingerprinter) Sum(input string) string {
	h, err := blake2b.New(16, f.key)
	if err != nil {
		// Only returned for invalid sizes, which NewFingerprinter rules out.
		panic(err)
	}
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}
