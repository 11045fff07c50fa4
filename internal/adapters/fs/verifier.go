package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// Exists reports whether path is an existing regular file.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}
	return info.Mode().IsRegular(), nil
}

// Verify checks path against check. A nil check only requires the file to exist.
// A mismatch is reported as *domain.IntegrityError.
func Verify(path string, check *domain.IntegrityCheck) error {
	if check == nil {
		ok, err := Exists(path)
		if err != nil {
			return err
		}
		if !ok {
			return zerr.With(zerr.Wrap(iofs.ErrNotExist, "file missing"), "path", path)
		}
		return nil
	}

	actual, err := Digest(path, check.Algorithm)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, check.Digest) {
		return &domain.IntegrityError{
			Path:      path,
			Algorithm: string(check.Algorithm),
			Expected:  check.Digest,
			Actual:    actual,
		}
	}
	return nil
}

// VerifyAny accepts path when it matches any of the SHA-1 digests in sums.
// An empty list accepts any existing file.
func VerifyAny(path string, sums []string) error {
	if len(sums) == 0 {
		return Verify(path, nil)
	}
	actual, err := Digest(path, domain.SHA1)
	if err != nil {
		return err
	}
	for _, s := range sums {
		if strings.EqualFold(actual, s) {
			return nil
		}
	}
	return &domain.IntegrityError{
		Path:      path,
		Algorithm: string(domain.SHA1),
		Expected:  strings.Join(sums, "|"),
		Actual:    actual,
	}
}
