package ports

import (
	"context"

	"go.trai.ch/hearth/internal/core/domain"
)

// Fetcher downloads a URL to a local path.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch places req.URL at req.Dest. The destination only ever appears complete:
	// bytes are streamed into a partial file that is renamed once fully written.
	Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error)
}
