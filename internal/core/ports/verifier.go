package ports

import "go.trai.ch/hearth/internal/core/domain"

// Verifier computes content hashes and compares them to declared checksums.
//
//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks
type Verifier interface {
	// Sum returns the lower-case hex digest of the file at path.
	Sum(path string, algorithm domain.HashAlgorithm) (string, error)

	// Verify hashes the file at path with want's algorithm.
	// It returns the observed digest and whether it matches want.
	Verify(path string, want domain.Checksum) (observed string, ok bool, err error)
}
