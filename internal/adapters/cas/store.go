// Package cas implements the content-addressed cache shared by every installed version.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/opencontainers/go-digest"
	depotfs "go.trai.ch/depot/internal/adapters/fs"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Cache = (*Store)(nil)

const objectsDirName = "objects"

// Store implements ports.Cache. Objects live at objects/<algorithm>/<hex[:2]>/<hex> below the
// root and are tracked by a JSON index.
type Store struct {
	root  string
	mu    sync.RWMutex
	index map[digest.Digest]string
	dirty bool
}

type indexFile struct {
	Entries map[string]string `json:"entries"`
}

// NewStore opens the store rooted at root, loading its index when present.
func NewStore(root string) (*Store, error) {
	s := &Store{
		root:  filepath.Clean(root),
		index: make(map[digest.Digest]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the common directory.
func (s *Store) Root() string { return s.root }

func (s *Store) indexPath() string {
	return filepath.Join(s.root, domain.CacheIndexFileName)
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, domain.ErrCacheIndexCorrupt.Error())
	}

	if len(data) == 0 {
		return nil
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheIndexCorrupt.Error()), "path", s.indexPath())
	}
	// Paths are rebuilt from the key so a tampered index cannot point outside the root.
	for k := range f.Entries {
		key := digest.Digest(k)
		if domain.ValidateDigest(key) != nil {
			continue
		}
		s.index[key] = s.ObjectPath(key)
	}
	return nil
}

// Flush persists the index atomically. It is a no-op when nothing changed.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	f := indexFile{Entries: make(map[string]string, len(s.index))}
	for k, p := range s.index {
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			continue
		}
		f.Entries[k.String()] = filepath.ToSlash(rel)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal cache index")
	}
	if err := depotfs.WriteFileAtomic(s.indexPath(), data); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	s.dirty = false
	return nil
}

// ObjectPath returns where the object for key is stored.
func (s *Store) ObjectPath(key digest.Digest) string {
	enc := key.Encoded()
	prefix := enc
	if len(enc) > 2 {
		prefix = enc[:2]
	}
	return filepath.Join(s.root, objectsDirName, key.Algorithm().String(), prefix, enc)
}

// Lookup returns the stored file for key. Entries whose file vanished are reported missing.
func (s *Store) Lookup(key digest.Digest) (string, bool) {
	if domain.ValidateDigest(key) != nil {
		return "", false
	}
	s.mu.RLock()
	p, ok := s.index[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	exists, err := depotfs.Exists(p)
	if err != nil || !exists {
		return "", false
	}
	return p, true
}

// Put stores src under key. Concurrent puts of the same key are safe: each writer renames a
// complete file into place and the last one wins.
func (s *Store) Put(key digest.Digest, src string) (string, error) {
	if err := domain.ValidateDigest(key); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "digest", key.String())
	}
	dest := s.ObjectPath(key)
	if !depotfs.SameFile(src, dest) {
		if err := depotfs.LinkOrCopy(src, dest); err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "digest", key.String())
		}
	}

	s.mu.Lock()
	s.index[key] = dest
	s.dirty = true
	s.mu.Unlock()
	return dest, nil
}

// Register stores an already verified file unless key is cached.
func (s *Store) Register(key digest.Digest, path string) (bool, error) {
	if _, ok := s.Lookup(key); ok {
		return false, nil
	}
	if _, err := s.Put(key, path); err != nil {
		return false, err
	}
	return true, nil
}

// Materialize places the object stored under key at dest.
func (s *Store) Materialize(key digest.Digest, dest string) (bool, error) {
	src, ok := s.Lookup(key)
	if !ok {
		return false, nil
	}
	if depotfs.SameFile(src, dest) {
		return true, nil
	}
	if err := depotfs.LinkOrCopy(src, dest); err != nil {
		return false, zerr.With(err, "digest", key.String())
	}
	return true, nil
}

// Keys returns every cached digest in sorted order.
func (s *Store) Keys() []digest.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]digest.Digest, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
