// Package fs holds the file primitives shared by the cache, the repository and the downloader.
package fs

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// Digest computes the hex digest of a file's content with alg.
func Digest(path string, alg digest.Algorithm) (string, error) {
	h, err := domain.NewHash(alg)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFileHash computes the XXHash of a file's content.
func ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return hasher.Sum64(), nil
}

// TempPath returns a sibling of dest used while writing it. The suffix is stable for the same
// (dest, seed) pair so two writers never share a temp file unless they fetch the same thing.
func TempPath(dest, seed string) string {
	return fmt.Sprintf("%s.part-%016x", dest, xxhash.Sum64String(dest+"\x00"+seed))
}
