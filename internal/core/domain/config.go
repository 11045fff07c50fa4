package domain

import "time"

// Mirror rewrites URL prefixes into a mirror's equivalents.
type Mirror struct {
	Name     string
	Rewrites map[string]string
}

// Config is the validated runtime configuration.
type Config struct {
	Root           string
	CacheDir       string
	Parallelism    int
	IntegrityCheck bool
	ConnectTimeout time.Duration
	AttemptTimeout time.Duration
	SpeedInterval  time.Duration
	VersionListURL string
	AssetBaseURL   string
	Mirrors        []Mirror
	Platform       Platform
	JSONLogs       bool
}

// Default timings.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultAttemptTimeout = 2 * time.Minute
	DefaultSpeedInterval  = time.Second
)
