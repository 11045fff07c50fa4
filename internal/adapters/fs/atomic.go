package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// WriteFileAtomic writes data to a temp file next to path and renames it into place.
// Readers observe either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create temp file"), "path", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to write temp file"), "path", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to close temp file"), "path", path)
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to chmod temp file"), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, "failed to rename temp file"), "path", path)
	}
	return nil
}

// LinkOrCopy places src at dest, replacing dest. It hard links when both live on the same
// device and copies otherwise. dest is replaced by rename so it is never observed half written.
func LinkOrCopy(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", dest)
	}

	tmp := TempPath(dest, src) + "-" + strconv.Itoa(os.Getpid())
	_ = os.Remove(tmp)

	if err := os.Link(src, tmp); err != nil {
		if err := copyFile(src, tmp); err != nil {
			_ = os.Remove(tmp)
			return err
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to move file into place"), "path", dest)
	}
	return nil
}

// SameFile reports whether a and b refer to the same file on disk.
func SameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open file"), "path", src)
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create file"), "path", dest)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if _, err := io.Copy(out, in); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy file"), "path", dest)
	}
	return nil
}
