// Package repository implements the on-disk game repository.
package repository

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	depotfs "go.trai.ch/depot/internal/adapters/fs"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Repository = (*Repository)(nil)

// snapshot is an immutable view of the installed versions.
type snapshot struct {
	ids []string
	set map[string]bool
}

func newSnapshot(ids []string) *snapshot {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	s := &snapshot{ids: ids, set: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.set[id] = true
	}
	return s
}

func (s *snapshot) with(id string) *snapshot {
	if s.set[id] {
		return s
	}
	return newSnapshot(append(slices.Clone(s.ids), id))
}

func (s *snapshot) without(id string) *snapshot {
	if !s.set[id] {
		return s
	}
	ids := slices.DeleteFunc(slices.Clone(s.ids), func(v string) bool { return v == id })
	return newSnapshot(ids)
}

// Repository is a directory holding versions/, libraries/ and assets/.
// The version list is swapped as a whole so readers never see a partial refresh.
type Repository struct {
	layout domain.Layout

	mu   sync.RWMutex
	snap *snapshot
}

// New creates a repository rooted at root. Call Refresh to load the version list.
func New(root string) *Repository {
	return &Repository{
		layout: domain.Layout{Root: root},
		snap:   newSnapshot(nil),
	}
}

// Open creates a repository and loads its version list.
func Open(root string) (*Repository, error) {
	r := New(root)
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Layout returns the path scheme.
func (r *Repository) Layout() domain.Layout { return r.layout }

// Refresh rescans versions/. A version is installed when versions/<id>/<id>.json exists.
func (r *Repository) Refresh() error {
	dir := r.layout.VersionDir("")
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrRepositoryReadFailed.Error()), "path", dir)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ok, err := depotfs.Exists(r.layout.VersionJSON(e.Name()))
		if err != nil {
			return zerr.Wrap(err, domain.ErrRepositoryReadFailed.Error())
		}
		if ok {
			ids = append(ids, e.Name())
		}
	}

	next := newSnapshot(ids)
	r.mu.Lock()
	r.snap = next
	r.mu.Unlock()
	return nil
}

func (r *Repository) current() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Versions returns the installed version ids, sorted.
func (r *Repository) Versions() []string {
	return slices.Clone(r.current().ids)
}

// Has reports whether id is installed.
func (r *Repository) Has(id string) bool {
	return r.current().set[id]
}

// Lookup reads and validates the descriptor of id.
func (r *Repository) Lookup(id string) (domain.VersionDescriptor, error) {
	path := r.layout.VersionJSON(id)
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the repository root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.VersionDescriptor{}, zerr.With(zerr.Wrap(domain.ErrVersionNotFound, "lookup failed"), "id", id)
		}
		return domain.VersionDescriptor{}, zerr.With(zerr.Wrap(err, domain.ErrRepositoryReadFailed.Error()), "path", path)
	}

	v, err := domain.ParseVersion(path, data)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	if v.ID != id {
		v = v.WithID(id)
	}
	return v, nil
}

// Save writes the descriptor to versions/<id>/<id>.json.
func (r *Repository) Save(v domain.VersionDescriptor) error {
	if err := domain.ValidateVersion(v); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal version")
	}
	if err := depotfs.WriteFileAtomic(r.layout.VersionJSON(v.ID), data); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRepositoryWriteFailed.Error()), "id", v.ID)
	}

	r.mu.Lock()
	r.snap = r.snap.with(v.ID)
	r.mu.Unlock()
	return nil
}

// Remove deletes the version directory of id.
func (r *Repository) Remove(id string) error {
	if id == "" {
		return nil
	}
	if err := os.RemoveAll(r.layout.VersionDir(id)); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRepositoryWriteFailed.Error()), "id", id)
	}

	r.mu.Lock()
	r.snap = r.snap.without(id)
	r.mu.Unlock()
	return nil
}

// HasLibrary reports whether the jar of lib exists below libraries/.
func (r *Repository) HasLibrary(lib domain.Library) bool {
	ok, err := depotfs.Exists(r.layout.LibraryFile(lib.Artifact().Path()))
	return err == nil && ok
}

// Fingerprint hashes the installed version documents. It changes whenever a version is added,
// removed or rewritten.
func (r *Repository) Fingerprint() (uint64, error) {
	h := xxhash.New()
	var buf [8]byte
	for _, id := range r.Versions() {
		sum, err := depotfs.ComputeFileHash(r.layout.VersionJSON(id))
		if err != nil {
			return 0, err
		}
		_, _ = h.WriteString(id)
		binary.LittleEndian.PutUint64(buf[:], sum)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64(), nil
}
