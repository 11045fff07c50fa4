package repository_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/adapters/repository"
	"go.trai.ch/depot/internal/core/domain"
)

func writeVersion(t *testing.T, root, id, body string) {
	t.Helper()
	dir := filepath.Join(root, "versions", id)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0o600))
}

func TestRepository_RefreshAndLookup(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, "1.20", `{"id":"1.20","mainClass":"net.minecraft.client.main.Main"}`)
	writeVersion(t, root, "forge", `{"id":"forge","inheritsFrom":"1.20"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "versions", "empty"), 0o750))

	repo, err := repository.Open(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"1.20", "forge"}, repo.Versions())
	assert.True(t, repo.Has("forge"))
	assert.False(t, repo.Has("empty"))

	v, err := repo.Lookup("forge")
	require.NoError(t, err)
	assert.Equal(t, "1.20", v.InheritsFrom)
}

func TestRepository_LookupMissing(t *testing.T) {
	repo := repository.New(t.TempDir())
	_, err := repo.Lookup("nope")
	require.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestRepository_LookupMalformed(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, "broken", `{"id":`)
	writeVersion(t, root, "self", `{"id":"self","inheritsFrom":"self"}`)
	repo, err := repository.Open(root)
	require.NoError(t, err)

	for _, id := range []string{"broken", "self"} {
		_, err := repo.Lookup(id)
		var me *domain.ArtifactMalformedError
		require.ErrorAs(t, err, &me, id)
		assert.Contains(t, me.Path, id+".json")
	}
}

func TestRepository_LookupFixesMismatchedID(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, "renamed", `{"id":"original"}`)
	repo := repository.New(root)

	v, err := repo.Lookup("renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", v.ID)
}

func TestRepository_SaveAndRemove(t *testing.T) {
	root := t.TempDir()
	repo := repository.New(root)

	require.NoError(t, repo.Save(domain.VersionDescriptor{ID: "1.21", MainClass: "Main"}))
	assert.True(t, repo.Has("1.21"))
	assert.FileExists(t, repo.Layout().VersionJSON("1.21"))

	v, err := repo.Lookup("1.21")
	require.NoError(t, err)
	assert.Equal(t, "Main", v.MainClass)

	require.NoError(t, repo.Remove("1.21"))
	assert.False(t, repo.Has("1.21"))
	assert.NoDirExists(t, repo.Layout().VersionDir("1.21"))

	require.Error(t, repo.Save(domain.VersionDescriptor{}))
}

func TestRepository_Fingerprint(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, "a", `{"id":"a"}`)
	repo, err := repository.Open(root)
	require.NoError(t, err)

	before, err := repo.Fingerprint()
	require.NoError(t, err)

	require.NoError(t, repo.Save(domain.VersionDescriptor{ID: "a", MainClass: "Changed"}))
	after, err := repo.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestRepository_ConcurrentRefresh(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"a", "b", "c"} {
		writeVersion(t, root, id, `{"id":"`+id+`"}`)
	}
	repo, err := repository.Open(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() { assert.NoError(t, repo.Refresh()) })
		wg.Go(func() {
			for range 50 {
				assert.Len(t, repo.Versions(), 3)
			}
		})
	}
	wg.Wait()
}

func TestRepository_HasLibrary(t *testing.T) {
	root := t.TempDir()
	repo := repository.New(root)
	lib := domain.Library{Name: "optifine:OptiFine:1.12.2_HD_U_E3:installer"}
	assert.False(t, repo.HasLibrary(lib))

	path := repo.Layout().LibraryFile(lib.Artifact().Path())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("jar"), 0o600))
	assert.True(t, repo.HasLibrary(lib))
}
