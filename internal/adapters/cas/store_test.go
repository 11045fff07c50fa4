package cas_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/adapters/cas"
	"go.trai.ch/depot/internal/core/domain"
)

const helloSHA1 = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

func helloKey() digest.Digest {
	return domain.SHA1Check(helloSHA1).Key()
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))
	return src
}

func TestStore_PutAndLookup(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)

	_, ok := store.Lookup(helloKey())
	assert.False(t, ok)

	stored, err := store.Put(helloKey(), writeSource(t, root))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "common", "objects", "sha1", "aa", helloSHA1), stored)

	got, ok := store.Lookup(helloKey())
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestStore_Persistence(t *testing.T) {
	root := t.TempDir()
	common := filepath.Join(root, "common")

	store1, err := cas.NewStore(common)
	require.NoError(t, err)
	_, err = store1.Put(helloKey(), writeSource(t, root))
	require.NoError(t, err)
	require.NoError(t, store1.Flush())

	store2, err := cas.NewStore(common)
	require.NoError(t, err)
	_, ok := store2.Lookup(helloKey())
	assert.True(t, ok)
	assert.Equal(t, []digest.Digest{helloKey()}, store2.Keys())
}

func TestStore_CorruptIndex(t *testing.T) {
	common := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(common, domain.CacheIndexFileName), []byte("{"), 0o600))

	_, err := cas.NewStore(common)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrCacheIndexCorrupt.Error())
}

func TestStore_MissingObjectIsAMiss(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)

	stored, err := store.Put(helloKey(), writeSource(t, root))
	require.NoError(t, err)
	require.NoError(t, os.Remove(stored))

	_, ok := store.Lookup(helloKey())
	assert.False(t, ok)
}

func TestStore_Materialize(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)

	dest := filepath.Join(root, "assets", "objects", "aa", helloSHA1)
	ok, err := store.Materialize(helloKey(), dest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Put(helloKey(), writeSource(t, root))
	require.NoError(t, err)

	ok, err = store.Materialize(helloKey(), dest)
	require.NoError(t, err)
	require.True(t, ok)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStore_Register(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)
	src := writeSource(t, root)

	added, err := store.Register(helloKey(), src)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Register(helloKey(), src)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestStore_ConcurrentPutSameDigest(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		dir := filepath.Join(root, "src", string(rune('a'+i)))
		require.NoError(t, os.MkdirAll(dir, 0o750))
		src := writeSource(t, dir)
		wg.Go(func() {
			_, err := store.Put(helloKey(), src)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	stored, ok := store.Lookup(helloKey())
	require.True(t, ok)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStore_RejectsMalformedKeys(t *testing.T) {
	root := t.TempDir()
	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)
	src := writeSource(t, root)

	key := digest.NewDigestFromEncoded(domain.SHA1, "../../../outside")
	_, err = store.Put(key, src)
	require.ErrorIs(t, err, domain.ErrInvalidField)
	assert.NoFileExists(t, filepath.Join(root, "outside"))

	added, err := store.Register(key, src)
	require.Error(t, err)
	assert.False(t, added)

	_, ok := store.Lookup(key)
	assert.False(t, ok)
	assert.Empty(t, store.Keys())
}

func TestStore_IndexEntriesAreRebuiltFromKeys(t *testing.T) {
	root := filepath.Join(t.TempDir(), "common")
	require.NoError(t, os.MkdirAll(root, 0o750))
	index := `{"entries":{"` + helloKey().String() + `":"../../elsewhere","sha1:../x":"x"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.CacheIndexFileName), []byte(index), 0o600))

	store, err := cas.NewStore(root)
	require.NoError(t, err)
	assert.Equal(t, []digest.Digest{helloKey()}, store.Keys())
	assert.Equal(t, store.ObjectPath(helloKey()), filepath.Join(root, "objects", "sha1", "aa", helloSHA1))
}
