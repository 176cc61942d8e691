package domain

import (
	"encoding/hex"
	"strings"

	"go.trai.ch/zerr"
)

// HashAlgorithm names a content hash function.
type HashAlgorithm string

const (
	// AlgorithmSHA1 is the algorithm upstream metadata declares.
	AlgorithmSHA1 HashAlgorithm = "sha1"
	// AlgorithmSHA256 is SHA-256.
	AlgorithmSHA256 HashAlgorithm = "sha256"
	// AlgorithmSHA512 is SHA-512.
	AlgorithmSHA512 HashAlgorithm = "sha512"
	// AlgorithmXXH64 is the 64-bit xxHash used for fast local integrity records.
	AlgorithmXXH64 HashAlgorithm = "xxh64"
)

// digestLengths maps each algorithm to the length of its hex encoding.
var digestLengths = map[HashAlgorithm]int{
	AlgorithmSHA1:   40,
	AlgorithmSHA256: 64,
	AlgorithmSHA512: 128,
	AlgorithmXXH64:  16,
}

// Checksum is a declared content hash.
type Checksum struct {
	Algorithm HashAlgorithm `json:"algorithm"`
	Value     string        `json:"value"`
}

// String renders the checksum as algorithm:value.
func (c Checksum) String() string {
	if c.Algorithm == "" && c.Value == "" {
		return ""
	}
	return string(c.Algorithm) + ":" + c.Value
}

// Render formats an observed hex digest with this checksum's algorithm, so it reads like the
// declared value. An empty digest renders empty.
func (c Checksum) Render(observed string) string {
	if observed == "" {
		return ""
	}
	return Checksum{Algorithm: c.Algorithm, Value: observed}.String()
}

// Equal reports whether two checksums use the same algorithm and value.
func (c Checksum) Equal(other Checksum) bool {
	return c.Algorithm == other.Algorithm && strings.EqualFold(c.Value, other.Value)
}

// Matches reports whether an observed hex digest equals the declared value.
func (c Checksum) Matches(observed string) bool {
	return strings.EqualFold(c.Value, observed)
}

// Validate checks that the algorithm is known and the value is a well-formed hex digest.
func (c Checksum) Validate() error {
	want, ok := digestLengths[c.Algorithm]
	if !ok {
		return zerr.With(ErrUnknownHashAlgorithm, "algorithm", string(c.Algorithm))
	}
	if len(c.Value) != want {
		err := zerr.With(ErrMalformedChecksum, "algorithm", string(c.Algorithm))
		return zerr.With(err, "length", len(c.Value))
	}
	if c.Value != strings.ToLower(c.Value) {
		return zerr.With(ErrMalformedChecksum, "reason", "checksum must be lower-case hex")
	}
	if _, err := hex.DecodeString(c.Value); err != nil {
		return zerr.With(zerr.Wrap(err, ErrMalformedChecksum.Error()), "value", c.Value)
	}
	return nil
}

// KnownAlgorithm reports whether the algorithm is supported by the verifier.
func KnownAlgorithm(a HashAlgorithm) bool {
	_, ok := digestLengths[a]
	return ok
}
