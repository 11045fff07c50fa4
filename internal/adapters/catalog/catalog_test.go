package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/depot/internal/adapters/catalog"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports/mocks"
	"go.trai.ch/depot/internal/engine/download"
)

const manifest = `{
  "latest": {"release": "1.20.1", "snapshot": "23w31a"},
  "versions": [
    {"id": "1.19.4", "type": "release", "url": "https://meta/1.19.4.json", "releaseTime": "2023-03-14T12:56:18+00:00"},
    {"id": "23w31a", "type": "snapshot", "url": "https://meta/23w31a.json", "releaseTime": "2023-08-01T11:03:46+00:00"},
    {"id": "1.20.1", "type": "release", "url": "https://meta/1.20.1.json", "releaseTime": "2023-06-12T13:25:51+00:00"},
    {"id": "b1.7.3", "type": "old_beta", "url": "https://meta/b1.7.3.json", "releaseTime": "2011-07-07T22:00:00+00:00"},
    {"id": "", "type": "release", "url": "https://meta/blank.json"}
  ]
}`

func newCatalog(t *testing.T, body string) (*catalog.Catalog, *mocks.MockLogger) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	return catalog.New(download.NewManager(srv.Client()), srv.URL+"/version_manifest.json", logger), logger
}

func TestCatalog_Refresh(t *testing.T) {
	c, logger := newCatalog(t, manifest)
	logger.EXPECT().Warn(gomock.Any()).Times(1)

	require.NoError(t, c.Refresh(context.Background()))

	var ids []string
	for _, v := range c.Versions() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"23w31a", "1.20.1", "1.19.4", "b1.7.3"}, ids)

	v, ok := c.Lookup("b1.7.3")
	require.True(t, ok)
	assert.Equal(t, domain.ReleaseTypeOld, v.Type)
	assert.Equal(t, domain.LoaderGame, v.Kind)
	assert.Equal(t, []string{"https://meta/b1.7.3.json"}, v.URLs)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, catalog.Latest{Release: "1.20.1", Snapshot: "23w31a"}, c.Latest())
}

func TestCatalog_MalformedKeepsPreviousList(t *testing.T) {
	c, logger := newCatalog(t, `{"versions": [`)
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, domain.ErrArtifactMalformed)
	assert.Empty(t, c.Versions())
}

func TestParse(t *testing.T) {
	versions, latest, err := catalog.Parse("inline", []byte(manifest))
	require.NoError(t, err)
	assert.Len(t, versions, 5)
	assert.Equal(t, "1.20.1", latest.Release)
	assert.Equal(t, 2023, versions[0].ReleaseTime.Year())
}
