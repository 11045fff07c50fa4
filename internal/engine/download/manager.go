// Package download fetches resources from ordered mirror candidates into local files.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	depotfs "go.trai.ch/depot/internal/adapters/fs"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/task"
	"go.trai.ch/zerr"
)

// StageName labels download tasks for progress observers.
const StageName = "download"

// Request describes one logical resource.
type Request struct {
	// URLs are the logical locations in preference order. Each is expanded through the
	// mirror provider before being tried.
	URLs []string
	// Dest is the file to produce.
	Dest string
	// Check is the expected digest. Nil disables verification and caching.
	Check *domain.IntegrityCheck
	// Cacheable registers the verified file into the cache.
	Cacheable bool
	// Validate runs on the downloaded file after the digest check. A failure is handled like a
	// digest mismatch.
	Validate func(path string) error
}

// Name returns a short label for the request.
func (r Request) Name() string {
	return filepath.Base(r.Dest)
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache enables the content-addressed cache.
func WithCache(c ports.Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithMirrors sets the provider expanding logical URLs.
func WithMirrors(p ports.MirrorProvider) Option {
	return func(m *Manager) { m.mirrors = p }
}

// WithAttemptTimeout bounds how long a candidate attempt may wait for a response or go without
// receiving body bytes. A slow but steady transfer is never cut off.
func WithAttemptTimeout(d time.Duration) Option {
	return func(m *Manager) { m.attemptTimeout = d }
}

// WithSpeedMeter sets the meter that observes every transferred byte.
func WithSpeedMeter(s *SpeedMeter) Option {
	return func(m *Manager) { m.meter = s }
}

// WithTracer spans every candidate attempt.
func WithTracer(t ports.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithLogger reports recoverable problems such as cache write failures.
func WithLogger(l ports.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager downloads resources. It is safe for concurrent use.
type Manager struct {
	client         *http.Client
	cache          ports.Cache
	mirrors        ports.MirrorProvider
	attemptTimeout time.Duration
	meter          *SpeedMeter
	tracer         ports.Tracer
	logger         ports.Logger
}

// NewHTTPClient returns a client whose dial phase is bounded by connectTimeout and whose wait
// for response headers is bounded by responseTimeout.
func NewHTTPClient(connectTimeout, responseTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = domain.DefaultConnectTimeout
	}
	if responseTimeout <= 0 {
		responseTimeout = domain.DefaultAttemptTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = responseTimeout
	return &http.Client{Transport: transport}
}

// NewManager creates a manager using client for every transfer.
func NewManager(client *http.Client, opts ...Option) *Manager {
	if client == nil {
		client = NewHTTPClient(0, 0)
	}
	m := &Manager{client: client, attemptTimeout: domain.DefaultAttemptTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Meter returns the speed meter, if any.
func (m *Manager) Meter() *SpeedMeter { return m.meter }

// Task returns a lazily evaluated download of req yielding the destination path.
func (m *Manager) Task(req Request) *task.Task[string] {
	return task.New("download "+req.Name(), func(ctx *task.Context) (string, error) {
		return m.fetch(ctx, req, ctx.Progress)
	}).WithStage(StageName)
}

// Fetch downloads req and returns the destination path.
func (m *Manager) Fetch(ctx context.Context, req Request) (string, error) {
	return m.fetch(ctx, req, nil)
}

func (m *Manager) fetch(ctx context.Context, req Request, progress func(done, total int64)) (string, error) {
	if len(req.URLs) == 0 {
		return "", zerr.With(domain.ErrNoCandidates, "dest", req.Dest)
	}

	if m.fromCache(req) {
		return req.Dest, nil
	}

	err := m.try(ctx, req.Name(), req.URLs, func(ctx context.Context, url string) (int, error) {
		return m.toFile(ctx, url, req, progress)
	})
	if err != nil {
		return "", err
	}

	if req.Check != nil && req.Cacheable && m.cache != nil {
		if _, err := m.cache.Put(req.Check.Key(), req.Dest); err != nil {
			m.warn(err)
		}
	}
	return req.Dest, nil
}

// FetchBytes downloads a small document into memory.
func (m *Manager) FetchBytes(ctx context.Context, urls ...string) ([]byte, error) {
	if len(urls) == 0 {
		return nil, domain.ErrNoCandidates
	}

	var out []byte
	err := m.try(ctx, urls[0], urls, func(ctx context.Context, url string) (int, error) {
		var buf bytes.Buffer
		status, err := m.get(ctx, url, &buf, nil)
		if err != nil {
			return status, err
		}
		out = buf.Bytes()
		return status, nil
	})
	return out, err
}

func (m *Manager) fromCache(req Request) bool {
	if req.Check == nil || m.cache == nil {
		return false
	}
	ok, err := m.cache.Materialize(req.Check.Key(), req.Dest)
	if err != nil {
		m.warn(err)
		return false
	}
	if !ok {
		return false
	}
	if err := depotfs.Verify(req.Dest, req.Check); err != nil {
		m.warn(err)
		_ = os.Remove(req.Dest)
		return false
	}
	return true
}

func (m *Manager) candidates(urls []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urls {
		expanded := []string{u}
		if m.mirrors != nil {
			expanded = m.mirrors.Candidates(u)
		}
		for _, c := range expanded {
			if c != "" && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// try runs attempt against each candidate in order until one succeeds.
func (m *Manager) try(
	ctx context.Context,
	name string,
	urls []string,
	attempt func(ctx context.Context, url string) (int, error),
) error {
	candidates := m.candidates(urls)
	if len(candidates) == 0 {
		return zerr.With(domain.ErrNoCandidates, "resource", name)
	}

	last := &domain.DownloadError{}
	for _, url := range candidates {
		if err := ctx.Err(); err != nil {
			return &domain.CancelledError{Task: name, Cause: err}
		}

		status, err := m.attempt(ctx, url, attempt)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &domain.CancelledError{Task: name, Cause: ctxErr}
		}
		last = &domain.DownloadError{URL: url, Status: status, Cause: err}
	}
	return last
}

func (m *Manager) attempt(
	ctx context.Context,
	url string,
	attempt func(ctx context.Context, url string) (int, error),
) (int, error) {
	if m.tracer != nil {
		var span ports.Span
		ctx, span = m.tracer.Start(ctx, "GET "+url, ports.WithStage(StageName))
		defer span.End()
		status, err := attempt(ctx, url)
		span.SetAttribute("http.status_code", status)
		if err != nil {
			span.RecordError(err)
		}
		return status, err
	}
	return attempt(ctx, url)
}

// toFile downloads url into a temp file next to the destination, verifies it and renames it
// into place. The temp file is removed on every failure.
func (m *Manager) toFile(ctx context.Context, url string, req Request, progress func(done, total int64)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(req.Dest), domain.DirPerm); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to create directory"), "path", req.Dest)
	}

	tmp := depotfs.TempPath(req.Dest, url)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to create temp file"), "path", tmp)
	}

	status, err := m.get(ctx, url, f, progress)
	err = errors.Join(err, f.Close())
	if err == nil && req.Check != nil {
		err = depotfs.Verify(tmp, req.Check)
	}
	if err == nil && req.Validate != nil {
		err = req.Validate(tmp)
	}
	if err == nil {
		err = os.Rename(tmp, req.Dest)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return status, err
	}
	return status, nil
}

// get streams the body of url into w. The request is abandoned once it stays idle for longer
// than the attempt timeout.
func (m *Manager) get(ctx context.Context, url string, w io.Writer, progress func(done, total int64)) (int, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var idle *time.Timer
	if m.attemptTimeout > 0 {
		idle = time.AfterFunc(m.attemptTimeout, func() { cancel(errStalled) })
		defer idle.Stop()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "invalid url"), "url", url)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return 0, stalled(ctx, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, zerr.With(zerr.New(fmt.Sprintf("unexpected status %s", resp.Status)), "url", url)
	}

	writers := []io.Writer{w}
	if m.meter != nil {
		writers = append(writers, m.meter)
	}
	if progress != nil {
		writers = append(writers, &progressWriter{total: resp.ContentLength, report: progress})
	}

	var body io.Reader = resp.Body
	if idle != nil {
		body = &idleReader{r: resp.Body, timer: idle, timeout: m.attemptTimeout}
	}
	if _, err := io.Copy(io.MultiWriter(writers...), body); err != nil {
		return resp.StatusCode, stalled(ctx, url, zerr.With(zerr.Wrap(err, "failed to read body"), "url", url))
	}
	return resp.StatusCode, nil
}

var errStalled = zerr.New("transfer stalled")

// stalled replaces err with errStalled when the idle timer aborted the request.
func stalled(ctx context.Context, url string, err error) error {
	if errors.Is(context.Cause(ctx), errStalled) {
		return zerr.With(zerr.Wrap(errStalled, err.Error()), "url", url)
	}
	return err
}

// idleReader pushes the idle deadline back whenever the body yields bytes.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (m *Manager) warn(err error) {
	if m.logger != nil {
		m.logger.Warn(err.Error())
	}
}

type progressWriter struct {
	done   int64
	total  int64
	report func(done, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	total := p.total
	if total < p.done {
		total = p.done
	}
	p.report(p.done, total)
	return len(b), nil
}
