package ports

import (
	"context"

	"go.trai.ch/depot/internal/core/domain"
)

// Catalog is the remote list of installable game versions.
//
//go:generate go run go.uber.org/mock/mockgen -source=catalog.go -destination=mocks/mock_catalog.go -package=mocks
type Catalog interface {
	// Refresh reloads the catalogue. Readers keep seeing the previous list until it completes.
	Refresh(ctx context.Context) error

	// Versions returns the catalogue newest-first.
	Versions() []domain.RemoteVersion

	// Lookup returns the entry with the given id.
	Lookup(id string) (domain.RemoteVersion, bool)
}
