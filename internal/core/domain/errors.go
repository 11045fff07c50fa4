package domain

import (
	"errors"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrResolution is the sentinel matched by every *ResolutionError.
	ErrResolution = zerr.New("version resolution failed")

	// ErrArtifactMalformed is the sentinel matched by every *ArtifactMalformedError.
	ErrArtifactMalformed = zerr.New("artifact is malformed")

	// ErrIntegrity is the sentinel matched by every *IntegrityError.
	ErrIntegrity = zerr.New("integrity check failed")

	// ErrDownload is the sentinel matched by every *DownloadError.
	ErrDownload = zerr.New("download failed")

	// ErrCancelled is the sentinel matched by every *CancelledError.
	ErrCancelled = zerr.New("operation cancelled")

	// ErrCycleDetected is returned when the task graph or an inheritance chain loops.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrMissingParent is returned when an inheritsFrom target does not exist.
	ErrMissingParent = zerr.New("parent version not found")

	// ErrVersionNotFound is returned when a requested version does not exist.
	ErrVersionNotFound = zerr.New("version not found")

	// ErrNotIndependent is returned when a merge is requested on a descriptor that still has a parent.
	ErrNotIndependent = zerr.New("version still inherits from a parent")

	// ErrNotPreservingPatches is returned when a patch-preserving operation gets a plain descriptor.
	ErrNotPreservingPatches = zerr.New("version was not resolved preserving patches")

	// ErrUnsupportedAlgorithm is returned for integrity checks using an unknown hash algorithm.
	ErrUnsupportedAlgorithm = zerr.New("unsupported digest algorithm")

	// ErrNoCandidates is returned when a download request carries no URL at all.
	ErrNoCandidates = zerr.New("no candidate urls")

	// ErrUnsupportedLoader is returned when no installer is registered for a loader kind.
	ErrUnsupportedLoader = zerr.New("unsupported loader")

	// ErrInvalidCoordinate is returned for library names that are not group:artifact:version.
	ErrInvalidCoordinate = zerr.New("invalid maven coordinate")

	// ErrInvalidField is returned by post-parse validation.
	ErrInvalidField = zerr.New("invalid field")

	// ErrCacheIndexCorrupt is returned when the cache index cannot be decoded.
	ErrCacheIndexCorrupt = zerr.New("cache index is corrupt")

	// ErrCacheWriteFailed is returned when a file cannot be stored in the cache.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrRepositoryReadFailed is returned when the local repository cannot be read.
	ErrRepositoryReadFailed = zerr.New("failed to read repository")

	// ErrRepositoryWriteFailed is returned when the local repository cannot be written.
	ErrRepositoryWriteFailed = zerr.New("failed to write repository")

	// ErrConfigReadFailed is returned when the configuration file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration")

	// ErrConfigParseFailed is returned when the configuration file cannot be decoded.
	ErrConfigParseFailed = zerr.New("failed to parse configuration")

	// ErrTaskResultType is returned when a step finishes with a value of the wrong type.
	ErrTaskResultType = zerr.New("task produced a result of unexpected type")

	// ErrGraphExecutionFailed marks a run whose root did not succeed.
	ErrGraphExecutionFailed = zerr.New("task graph execution failed")
)

// ResolutionError reports a broken inheritsFrom chain.
type ResolutionError struct {
	// Chain is the list of ids visited before the failure, leaf first.
	Chain  []string
	Reason error
}

func (e *ResolutionError) Error() string {
	msg := ErrResolution.Error()
	if e.Reason != nil {
		msg += ": " + e.Reason.Error()
	}
	if len(e.Chain) > 0 {
		msg += " (" + strings.Join(e.Chain, " -> ") + ")"
	}
	return msg
}

// Is matches ErrResolution.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

func (e *ResolutionError) Unwrap() error { return e.Reason }

// ArtifactMalformedError reports a JSON document or archive that cannot be read.
type ArtifactMalformedError struct {
	Path  string
	Cause error
}

func (e *ArtifactMalformedError) Error() string {
	msg := ErrArtifactMalformed.Error() + ": " + e.Path
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches ErrArtifactMalformed.
func (e *ArtifactMalformedError) Is(target error) bool { return target == ErrArtifactMalformed }

func (e *ArtifactMalformedError) Unwrap() error { return e.Cause }

// IntegrityError reports a digest mismatch.
type IntegrityError struct {
	Path      string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	return ErrIntegrity.Error() + ": " + e.Path + ": expected " + e.Algorithm + ":" + e.Expected +
		", got " + e.Algorithm + ":" + e.Actual
}

// Is matches ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// DownloadError reports that every candidate for a resource failed.
type DownloadError struct {
	// URL is the last candidate tried.
	URL string
	// Status is the HTTP status of the last response, zero when none was received.
	Status int
	Cause  error
}

func (e *DownloadError) Error() string {
	msg := ErrDownload.Error() + ": " + e.URL
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches ErrDownload.
func (e *DownloadError) Is(target error) bool { return target == ErrDownload }

func (e *DownloadError) Unwrap() error { return e.Cause }

// CancelledError reports that cooperative cancellation was observed.
type CancelledError struct {
	Task  string
	Cause error
}

func (e *CancelledError) Error() string {
	msg := ErrCancelled.Error()
	if e.Task != "" {
		msg += ": " + e.Task
	}
	return msg
}

// Is matches ErrCancelled.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Unwrap() error { return e.Cause }

// IsCancellation reports whether err represents cooperative cancellation.
func IsCancellation(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
