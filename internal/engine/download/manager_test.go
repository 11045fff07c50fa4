package download_test

import (
	"context"
	"crypto/sha1" //nolint:gosec // Matches the digest published by the distribution.
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/adapters/cas"
	"go.trai.ch/depot/internal/adapters/mirror"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/executor"
)

var payload = []byte("library bytes")

func payloadSHA1() string {
	sum := sha1.Sum(payload) //nolint:gosec // See import.
	return hex.EncodeToString(sum[:])
}

type server struct {
	*httptest.Server
	hits atomic.Int32
}

func newServer(t *testing.T, handler http.HandlerFunc) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write(payload)
}

func TestManager_FallsBackToNextCandidate(t *testing.T) {
	bad := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	good := newServer(t, okHandler)

	dest := filepath.Join(t.TempDir(), "libraries", "a.jar")
	m := download.NewManager(good.Client())

	got, err := m.Fetch(context.Background(), download.Request{
		URLs:  []string{bad.URL + "/a.jar", good.URL + "/a.jar"},
		Dest:  dest,
		Check: domain.SHA1Check(payloadSHA1()),
	})
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int32(1), bad.hits.Load())
}

func TestManager_DigestMismatchTriesNext(t *testing.T) {
	corrupt := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("corrupted"))
	})
	good := newServer(t, okHandler)

	dest := filepath.Join(t.TempDir(), "a.jar")
	m := download.NewManager(good.Client())

	_, err := m.Fetch(context.Background(), download.Request{
		URLs:  []string{corrupt.URL, good.URL},
		Dest:  dest,
		Check: domain.SHA1Check(payloadSHA1()),
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be removed")
}

func TestManager_AllCandidatesFail(t *testing.T) {
	first := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	second := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("wrong"))
	})

	dest := filepath.Join(t.TempDir(), "a.jar")
	m := download.NewManager(first.Client())

	_, err := m.Fetch(context.Background(), download.Request{
		URLs:  []string{first.URL + "/x", second.URL + "/y"},
		Dest:  dest,
		Check: domain.SHA1Check(payloadSHA1()),
	})

	var de *domain.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, second.URL+"/y", de.URL)
	assert.Equal(t, http.StatusOK, de.Status)
	assert.ErrorIs(t, err, domain.ErrDownload)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
	assert.NoFileExists(t, dest)
}

func TestManager_ConnectionFailureReportsLastURL(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/lib.jar"
	dead.Close()

	m := download.NewManager(nil, download.WithAttemptTimeout(5*time.Second))
	_, err := m.Fetch(context.Background(), download.Request{
		URLs: []string{deadURL},
		Dest: filepath.Join(t.TempDir(), "lib.jar"),
	})

	var de *domain.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deadURL, de.URL)
	assert.Zero(t, de.Status)
}

func TestManager_SecondRequestServedFromCache(t *testing.T) {
	srv := newServer(t, okHandler)
	root := t.TempDir()

	store, err := cas.NewStore(filepath.Join(root, "common"))
	require.NoError(t, err)
	m := download.NewManager(srv.Client(), download.WithCache(store))

	check := domain.SHA1Check(payloadSHA1())
	for _, name := range []string{"one/a.jar", "two/renamed.jar"} {
		_, err := m.Fetch(context.Background(), download.Request{
			URLs:      []string{srv.URL + "/a.jar"},
			Dest:      filepath.Join(root, name),
			Check:     check,
			Cacheable: true,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), srv.hits.Load())
	data, err := os.ReadFile(filepath.Join(root, "two", "renamed.jar"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestManager_MirrorsAreTriedFirst(t *testing.T) {
	origin := newServer(t, okHandler)
	mirrored := newServer(t, okHandler)

	chain := mirror.FromConfig([]domain.Mirror{{
		Name:     "local",
		Rewrites: map[string]string{origin.URL + "/": mirrored.URL + "/"},
	}})
	m := download.NewManager(origin.Client(), download.WithMirrors(chain))

	_, err := m.Fetch(context.Background(), download.Request{
		URLs: []string{origin.URL + "/a.jar"},
		Dest: filepath.Join(t.TempDir(), "a.jar"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), mirrored.hits.Load())
	assert.Zero(t, origin.hits.Load())
}

func TestManager_NoCandidates(t *testing.T) {
	m := download.NewManager(nil)
	_, err := m.Fetch(context.Background(), download.Request{Dest: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrNoCandidates.Error())
}

func TestManager_CancelledContext(t *testing.T) {
	srv := newServer(t, okHandler)
	m := download.NewManager(srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Fetch(ctx, download.Request{URLs: []string{srv.URL}, Dest: filepath.Join(t.TempDir(), "a")})
	require.Error(t, err)
	assert.True(t, domain.IsCancellation(err))
	assert.Zero(t, srv.hits.Load())
}

func TestManager_AttemptTimeoutAdvances(t *testing.T) {
	release := make(chan struct{})
	slow := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	good := newServer(t, okHandler)

	m := download.NewManager(good.Client(), download.WithAttemptTimeout(100*time.Millisecond))
	_, err := m.Fetch(context.Background(), download.Request{
		URLs: []string{slow.URL, good.URL},
		Dest: filepath.Join(t.TempDir(), "a"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), good.hits.Load())
}

func TestManager_SteadyTransferOutlivesAttemptTimeout(t *testing.T) {
	slow := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		flusher, _ := w.(http.Flusher)
		for _, b := range payload {
			_, _ = w.Write([]byte{b})
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(20 * time.Millisecond)
		}
	})

	dest := filepath.Join(t.TempDir(), "a.jar")
	m := download.NewManager(slow.Client(), download.WithAttemptTimeout(150*time.Millisecond))
	start := time.Now()
	_, err := m.Fetch(context.Background(), download.Request{
		URLs:  []string{slow.URL},
		Dest:  dest,
		Check: domain.SHA1Check(payloadSHA1()),
	})
	require.NoError(t, err)
	assert.Greater(t, time.Since(start), 150*time.Millisecond)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestManager_StalledBodyAdvances(t *testing.T) {
	stalled := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload[:4])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	good := newServer(t, okHandler)

	dest := filepath.Join(t.TempDir(), "a.jar")
	m := download.NewManager(good.Client(), download.WithAttemptTimeout(100*time.Millisecond))
	_, err := m.Fetch(context.Background(), download.Request{
		URLs:  []string{stalled.URL, good.URL},
		Dest:  dest,
		Check: domain.SHA1Check(payloadSHA1()),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), stalled.hits.Load())
	assert.Equal(t, int32(1), good.hits.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestManager_StalledOnlyCandidateReportsStall(t *testing.T) {
	stalled := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	m := download.NewManager(stalled.Client(), download.WithAttemptTimeout(100*time.Millisecond))
	_, err := m.Fetch(context.Background(), download.Request{
		URLs: []string{stalled.URL},
		Dest: filepath.Join(t.TempDir(), "a.jar"),
	})

	var de *domain.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusOK, de.Status)
	assert.Contains(t, err.Error(), "transfer stalled")
}

func TestManager_FetchBytes(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"1.20"}`))
	})
	m := download.NewManager(srv.Client())

	data, err := m.FetchBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1.20"}`, string(data))
}

func TestManager_TaskRunsInExecutor(t *testing.T) {
	srv := newServer(t, okHandler)
	m := download.NewManager(srv.Client())

	dest := filepath.Join(t.TempDir(), "a.jar")
	tk := m.Task(download.Request{URLs: []string{srv.URL}, Dest: dest, Check: domain.SHA1Check(payloadSHA1())})
	assert.Equal(t, download.StageName, tk.Stage())

	ex := executor.New(tk)
	require.NoError(t, ex.Run(context.Background()))

	got, err := tk.Result()
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	p := ex.Progress()
	assert.Equal(t, p.Total, p.Done)
}

func TestSpeedMeter_EmitsSamples(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		meter := download.NewSpeedMeter(time.Second)
		var samples []domain.SpeedSample
		meter.Subscribe(func(s domain.SpeedSample) { samples = append(samples, s) })

		_, _ = meter.Write(make([]byte, 2048))
		time.Sleep(time.Second + time.Millisecond)
		synctest.Wait()

		time.Sleep(time.Second)
		synctest.Wait()

		_, _ = meter.Write(make([]byte, 10))
		require.NoError(t, meter.Close())

		require.Len(t, samples, 2)
		assert.Equal(t, int64(2048), samples[0].Bytes)
		assert.InDelta(t, 2048.0, samples[0].BytesPerSecond(), 1e-9)
		assert.Equal(t, int64(10), samples[1].Bytes)
	})
}

func TestDownloadError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &domain.DownloadError{URL: "https://x", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "https://x")
}

func TestManager_ValidateFailureTriesNext(t *testing.T) {
	first := newServer(t, okHandler)
	second := newServer(t, okHandler)

	var calls atomic.Int32
	m := download.NewManager(first.Client())
	_, err := m.Fetch(context.Background(), download.Request{
		URLs: []string{first.URL, second.URL},
		Dest: filepath.Join(t.TempDir(), "a.jar"),
		Validate: func(string) error {
			if calls.Add(1) == 1 {
				return errors.New("not a zip")
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), second.hits.Load())
}

func TestNewHTTPClient_BoundsResponseHeaders(t *testing.T) {
	c := download.NewHTTPClient(time.Second, 3*time.Second)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, time.Second, tr.TLSHandshakeTimeout)

	tr, ok = download.NewHTTPClient(0, 0).Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, domain.DefaultAttemptTimeout, tr.ResponseHeaderTimeout)
}
