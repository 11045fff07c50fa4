// Package catalog reads the remote list of installable game versions.
package catalog

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Catalog = (*Catalog)(nil)

// Fetcher downloads small documents. *download.Manager satisfies it.
type Fetcher interface {
	FetchBytes(ctx context.Context, urls ...string) ([]byte, error)
}

// Latest holds the ids the catalogue marks as newest.
type Latest struct {
	Release  string
	Snapshot string
}

type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []manifestEntry `json:"versions"`
}

type manifestEntry struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
}

// Catalog caches the game version list. Refresh replaces the list as a whole.
type Catalog struct {
	fetcher Fetcher
	url     string
	logger  ports.Logger

	mu       sync.RWMutex
	versions []domain.RemoteVersion
	byID     map[string]int
	latest   Latest
}

// New creates an empty catalogue reading url through fetcher. Logger may be nil.
func New(fetcher Fetcher, url string, logger ports.Logger) *Catalog {
	if url == "" {
		url = domain.DefaultVersionListURL
	}
	return &Catalog{
		fetcher: fetcher,
		url:     url,
		logger:  logger,
		byID:    make(map[string]int),
	}
}

// Refresh downloads and parses the version list. Entries failing validation are skipped.
func (c *Catalog) Refresh(ctx context.Context) error {
	data, err := c.fetcher.FetchBytes(ctx, c.url)
	if err != nil {
		return zerr.Wrap(err, "failed to fetch version list")
	}

	versions, latest, err := Parse(c.url, data)
	if err != nil {
		return err
	}

	var kept []domain.RemoteVersion
	for _, v := range versions {
		if err := domain.ValidateRemoteVersion(v); err != nil {
			if c.logger != nil {
				c.logger.Warn("skipping catalogue entry: " + err.Error())
			}
			continue
		}
		kept = append(kept, v)
	}
	slices.SortStableFunc(kept, domain.CompareNewestFirst)

	byID := make(map[string]int, len(kept))
	for i, v := range kept {
		byID[v.ID] = i
	}

	c.mu.Lock()
	c.versions = kept
	c.byID = byID
	c.latest = latest
	c.mu.Unlock()
	return nil
}

// Parse decodes a version list document. Source is only used for error reporting.
func Parse(source string, data []byte) ([]domain.RemoteVersion, Latest, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, Latest{}, &domain.ArtifactMalformedError{Path: source, Cause: err}
	}

	out := make([]domain.RemoteVersion, 0, len(m.Versions))
	for _, e := range m.Versions {
		rv := domain.RemoteVersion{
			Kind:        domain.LoaderGame,
			GameVersion: e.ID,
			SelfVersion: e.ID,
			ID:          e.ID,
			Type:        domain.ParseReleaseType(e.Type),
			ReleaseTime: parseTime(e.ReleaseTime, e.Time),
		}
		if e.URL != "" {
			rv.URLs = []string{e.URL}
		}
		out = append(out, rv)
	}
	return out, Latest{Release: m.Latest.Release, Snapshot: m.Latest.Snapshot}, nil
}

func parseTime(values ...string) time.Time {
	for _, v := range values {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Versions returns the catalogue newest-first.
func (c *Catalog) Versions() []domain.RemoteVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.versions)
}

// Lookup returns the entry with the given id.
func (c *Catalog) Lookup(id string) (domain.RemoteVersion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return domain.RemoteVersion{}, false
	}
	return c.versions[i], true
}

// Latest returns the newest release and snapshot ids.
func (c *Catalog) Latest() Latest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
