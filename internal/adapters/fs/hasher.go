// Package fs provides file system adapters for hashing, walking and atomically writing files.
package fs

import (
	"crypto/sha1" //nolint:gosec // sha1 is the algorithm upstream metadata declares
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Hasher)(nil)

// Hasher computes content hashes of files and compares them to declared checksums.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Sum streams the file at path through the requested algorithm and returns the hex digest.
func (h *Hasher) Sum(path string, algorithm domain.HashAlgorithm) (string, error) {
	digest, err := newDigest(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(digest, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	if x, ok := digest.(*xxhash.Digest); ok {
		return fmt.Sprintf("%016x", x.Sum64()), nil
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// Verify hashes the file with want's algorithm and reports whether it matches.
func (h *Hasher) Verify(path string, want domain.Checksum) (string, bool, error) {
	observed, err := h.Sum(path, want.Algorithm)
	if err != nil {
		return "", false, err
	}
	return observed, want.Matches(observed), nil
}

// SumBytes hashes an in-memory buffer.
func SumBytes(data []byte, algorithm domain.HashAlgorithm) (string, error) {
	digest, err := newDigest(algorithm)
	if err != nil {
		return "", err
	}
	_, _ = digest.Write(data)
	if x, ok := digest.(*xxhash.Digest); ok {
		return fmt.Sprintf("%016x", x.Sum64()), nil
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func newDigest(algorithm domain.HashAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case domain.AlgorithmSHA1:
		return sha1.New(), nil //nolint:gosec // see import
	case domain.AlgorithmSHA256:
		return sha256.New(), nil
	case domain.AlgorithmSHA512:
		return sha512.New(), nil
	case domain.AlgorithmXXH64:
		return xxhash.New(), nil
	default:
		return nil, zerr.With(domain.ErrUnknownHashAlgorithm, "algorithm", string(algorithm))
	}
}
