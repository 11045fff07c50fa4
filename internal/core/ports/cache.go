// Package ports defines the core interfaces for the application.
package ports

import "github.com/opencontainers/go-digest"

// Cache is the content-addressed store shared by every installed version.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type Cache interface {
	// Lookup returns the stored file for key, if present.
	Lookup(key digest.Digest) (string, bool)

	// Put copies an already verified file into the store and records it under key.
	Put(key digest.Digest, src string) (string, error)

	// Register records an already verified file unless key is present. It reports whether the
	// file was added.
	Register(key digest.Digest, path string) (bool, error)

	// Materialize places the file stored under key at dest.
	// It returns false when the key is not cached.
	Materialize(key digest.Digest, dest string) (bool, error)

	// Flush persists the index.
	Flush() error
}
