package planner

import (
	"archive/zip"
	"path/filepath"
	"strings"

	depotfs "go.trai.ch/depot/internal/adapters/fs"
	"go.trai.ch/depot/internal/core/domain"
)

// localFileOK reports whether path can be used as is. Without verify only presence is checked.
// Otherwise the digest, the alternate checksum list and, for jars, the archive directory must all
// be valid. Integrity and archive failures yield false; I/O errors are returned.
func (b *Builder) localFileOK(path string, check *domain.IntegrityCheck, checksums []string, verify bool) (bool, error) {
	exists, err := depotfs.Exists(path)
	if err != nil || !exists {
		return false, err
	}
	if !verify {
		return true, nil
	}

	if check != nil {
		if err := depotfs.Verify(path, check); err != nil {
			return false, nil //nolint:nilerr // A corrupt file is re-downloaded
		}
	}
	if len(checksums) > 0 {
		if err := depotfs.VerifyAny(path, checksums); err != nil {
			return false, nil //nolint:nilerr // A corrupt file is re-downloaded
		}
	}
	if validate := archiveValidator(path); validate != nil {
		if err := validate(path); err != nil {
			return false, nil //nolint:nilerr // A corrupt file is re-downloaded
		}
	}
	return true, nil
}

// archiveValidator returns the check applied to downloaded jars, or nil for other files.
func archiveValidator(dest string) func(path string) error {
	if !strings.EqualFold(filepath.Ext(dest), ".jar") {
		return nil
	}
	return openArchive
}

// openArchive checks that path opens as a zip archive.
func openArchive(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return &domain.ArtifactMalformedError{Path: path, Cause: err}
	}
	return r.Close()
}
