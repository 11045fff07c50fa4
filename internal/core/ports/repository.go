package ports

import "go.trai.ch/depot/internal/core/domain"

//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

// VersionLookup finds version descriptors by id.
type VersionLookup interface {
	// Lookup returns the unresolved descriptor stored under id.
	Lookup(id string) (domain.VersionDescriptor, error)
}

// Repository is the local on-disk game repository.
type Repository interface {
	VersionLookup

	// Layout returns the path scheme of the repository.
	Layout() domain.Layout

	// Refresh rescans the installed versions.
	Refresh() error

	// Versions returns the ids of the installed versions, sorted.
	Versions() []string

	// Has reports whether a version is installed.
	Has(id string) bool

	// Save writes the descriptor JSON of a version.
	Save(v domain.VersionDescriptor) error

	// Remove deletes a version directory.
	Remove(id string) error
}
