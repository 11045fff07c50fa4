package planner_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // Matches the digests published by the distribution.
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/depot/internal/adapters/cas"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/executor"
	"go.trai.ch/depot/internal/engine/planner"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec // See import.
	return hex.EncodeToString(sum[:])
}

func jarBytes(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte("class"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type fixture struct {
	srv     *httptest.Server
	root    string
	files   map[string][]byte
	version domain.VersionDescriptor
	libPath string

	mu   sync.Mutex
	hits map[string]int
}

func (f *fixture) hitsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fixture) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		n += h
	}
	return n
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir(), files: map[string][]byte{}, hits: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		data, ok := f.files[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(f.srv.Close)

	client := jarBytes(t, "net/minecraft/client/main/Main.class")
	lib := jarBytes(t, "com/example/Lib.class")
	alpha, beta := []byte("alpha"), []byte("beta")

	index, err := json.Marshal(domain.AssetIndex{Objects: map[string]domain.AssetObject{
		"minecraft/sounds/a.ogg": {Hash: sha1Hex(alpha), Size: int64(len(alpha))},
		"minecraft/sounds/b.ogg": {Hash: sha1Hex(beta), Size: int64(len(beta))},
		"minecraft/sounds/c.ogg": {Hash: sha1Hex(alpha), Size: int64(len(alpha))},
	}})
	require.NoError(t, err)

	f.files["/client.jar"] = client
	f.files["/lib.jar"] = lib
	f.files["/index.json"] = index
	f.files["/objects/"+sha1Hex(alpha)[:2]+"/"+sha1Hex(alpha)] = alpha
	f.files["/objects/"+sha1Hex(beta)[:2]+"/"+sha1Hex(beta)] = beta

	f.libPath = "com/example/lib/1.0/lib-1.0.jar"
	f.version = domain.VersionDescriptor{
		ID: "1.0",
		Downloads: map[string]domain.DownloadInfo{
			domain.ClientDownloadKey: {URL: f.srv.URL + "/client.jar", SHA1: sha1Hex(client)},
		},
		AssetIndex: &domain.AssetIndexInfo{ID: "1.0", URL: f.srv.URL + "/index.json", SHA1: sha1Hex(index)},
		Libraries: []domain.Library{
			{
				Name: "com.example:lib:1.0",
				Downloads: &domain.LibraryDownloads{Artifact: &domain.DownloadInfo{
					Path: f.libPath, URL: f.srv.URL + "/lib.jar", SHA1: sha1Hex(lib),
				}},
			},
			{
				Name:  "com.example:windows-only:1.0",
				Rules: []domain.CompatibilityRule{{Action: domain.RuleAllow, OS: &domain.OSRestriction{Name: domain.OSWindows}}},
			},
		},
	}
	return f
}

func (f *fixture) layout() domain.Layout { return domain.Layout{Root: f.root} }

func (f *fixture) builder(opts ...planner.Option) *planner.Builder {
	opts = append([]planner.Option{planner.WithAssetBaseURL(f.srv.URL + "/objects")}, opts...)
	return planner.NewBuilder(f.layout(), download.NewManager(f.srv.Client()), domain.NewPlatform("linux", "amd64"), opts...)
}

func run(t *testing.T, ex *executor.Executor) error {
	t.Helper()
	return ex.Run(context.Background())
}

func TestPlanInstall_DownloadsEverything(t *testing.T) {
	f := newFixture(t)
	plan := f.builder().PlanInstall(f.version)

	require.NoError(t, run(t, executor.New(plan, executor.WithParallelism(4))))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, planner.Report{Downloaded: 5}, report)

	assert.FileExists(t, f.layout().VersionJar("1.0"))
	assert.FileExists(t, f.layout().LibraryFile(f.libPath))
	assert.FileExists(t, f.layout().AssetIndexFile("1.0"))
	assert.FileExists(t, f.layout().AssetObjectFile(domain.AssetObject{Hash: sha1Hex([]byte("beta"))}))
	assert.NoFileExists(t, f.layout().LibraryFile("com/example/windows-only/1.0/windows-only-1.0.jar"))
}

func TestVerifyComplete_NothingToDoAfterInstall(t *testing.T) {
	f := newFixture(t)
	b := f.builder()
	require.NoError(t, run(t, executor.New(b.PlanInstall(f.version))))
	before := f.totalHits()

	plan := b.VerifyComplete(f.version)
	require.NoError(t, run(t, executor.New(plan)))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, planner.Report{Cached: 5}, report)
	assert.Equal(t, before, f.totalHits())
}

func TestVerifyComplete_RepairsCorruptLibrary(t *testing.T) {
	f := newFixture(t)
	b := f.builder()
	require.NoError(t, run(t, executor.New(b.PlanInstall(f.version))))
	require.NoError(t, os.WriteFile(f.layout().LibraryFile(f.libPath), []byte("garbage"), 0o600))

	plan := b.VerifyComplete(f.version)
	require.NoError(t, run(t, executor.New(plan)))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Downloaded)
	assert.Equal(t, 2, f.hitsFor("/lib.jar"))
}

func TestVerifyComplete_TrustsPresenceWithoutIntegrityCheck(t *testing.T) {
	f := newFixture(t)
	b := f.builder(planner.WithIntegrityCheck(false))
	require.NoError(t, run(t, executor.New(b.PlanInstall(f.version))))
	require.NoError(t, os.WriteFile(f.layout().LibraryFile(f.libPath), []byte("garbage"), 0o600))

	plan := b.VerifyComplete(f.version)
	require.NoError(t, run(t, executor.New(plan)))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Zero(t, report.Downloaded)
	assert.Equal(t, 1, f.hitsFor("/lib.jar"))
}

func TestVerifyComplete_InvalidArchiveWithoutDigestIsRefetched(t *testing.T) {
	f := newFixture(t)
	lib := f.version.Libraries[0]
	lib.Downloads.Artifact.SHA1 = ""
	v := f.version.WithLibraries([]domain.Library{lib})

	path := f.layout().LibraryFile(f.libPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	plan := f.builder().Libraries(v)
	require.NoError(t, run(t, executor.New(plan)))

	n, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerifyComplete_RegistersExistingFilesIntoCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, run(t, executor.New(f.builder().PlanInstall(f.version))))

	store, err := cas.NewStore(filepath.Join(t.TempDir(), "common"))
	require.NoError(t, err)

	plan := f.builder(planner.WithCache(store)).VerifyComplete(f.version)
	require.NoError(t, run(t, executor.New(plan)))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Registered)
	assert.Len(t, store.Keys(), 5)
}

func TestPlanInstall_MissingAssetIsTolerated(t *testing.T) {
	f := newFixture(t)
	delete(f.files, "/objects/"+sha1Hex([]byte("beta"))[:2]+"/"+sha1Hex([]byte("beta")))

	plan := f.builder().PlanInstall(f.version)
	ex := executor.New(plan)
	require.NoError(t, run(t, ex))

	report, err := plan.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Failed)
	assert.Len(t, ex.Errors(), 1)
}

func TestPlanInstall_MissingLibraryFails(t *testing.T) {
	f := newFixture(t)
	delete(f.files, "/lib.jar")

	err := run(t, executor.New(f.builder().PlanInstall(f.version)))
	var de *domain.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, f.srv.URL+"/lib.jar", de.URL)
	assert.Equal(t, http.StatusNotFound, de.Status)
}

func TestPlanInstall_UnparseableIndexFails(t *testing.T) {
	f := newFixture(t)
	f.files["/index.json"] = []byte("{")
	f.version.AssetIndex.SHA1 = ""

	err := run(t, executor.New(f.builder().PlanInstall(f.version)))
	require.ErrorIs(t, err, domain.ErrDownload)
	require.ErrorIs(t, err, domain.ErrArtifactMalformed)
}

func TestAssetIndex_ReusesParseableLocalCopy(t *testing.T) {
	f := newFixture(t)
	b := f.builder()
	require.NoError(t, run(t, executor.New(b.PlanInstall(f.version))))

	idx := b.AssetIndex(f.version, false)
	require.NoError(t, run(t, executor.New(idx)))
	got, err := idx.Result()
	require.NoError(t, err)
	assert.Len(t, got.DistinctObjects(), 2)
	assert.Equal(t, 1, f.hitsFor("/index.json"))

	refreshed := b.AssetIndex(f.version, true)
	require.NoError(t, run(t, executor.New(refreshed)))
	assert.Equal(t, 2, f.hitsFor("/index.json"))
}

func TestPlan_BuildingIsLazy(t *testing.T) {
	f := newFixture(t)
	b := f.builder()
	_ = b.PlanInstall(f.version)
	_ = b.Assets(b.AssetIndex(f.version, true))
	_ = b.GameJar(f.version)

	assert.Zero(t, f.totalHits())
	assert.NoDirExists(t, filepath.Join(f.root, domain.VersionsDirName))
}

func TestPlan_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.New(f.builder().PlanInstall(f.version)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.totalHits())
}

func TestParseAssetIndex_RejectsEscapingHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"objects":{"a":{"hash":"../../../../../outside","size":1}}}`), 0o600))

	_, err := planner.ParseAssetIndex(path)
	require.ErrorIs(t, err, domain.ErrArtifactMalformed)
	require.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestPlanInstall_EscapingAssetHashWritesNothingOutside(t *testing.T) {
	f := newFixture(t)
	f.files["/index.json"] = []byte(`{"objects":{"a":{"hash":"../../../../../outside","size":1}}}`)
	f.version.AssetIndex.SHA1 = ""

	err := run(t, executor.New(f.builder().PlanInstall(f.version)))
	require.ErrorIs(t, err, domain.ErrArtifactMalformed)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(f.root), "outside"))
	assert.Zero(t, f.hitsFor("/outside"))
}
