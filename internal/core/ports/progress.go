package ports

import (
	"context"
	"io"

	"go.trai.ch/depot/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=progress.go -destination=mocks/mock_progress.go -package=mocks

// Recorder renders task progress, one vertex per unit of work.
type Recorder interface {
	// Record starts a vertex.
	Record(ctx context.Context, id, name string) Vertex
	// Close flushes and ends the recording session.
	Close() error
}

// Vertex is one unit of work shown by a Recorder.
type Vertex interface {
	// Stdout returns a writer for free-form output.
	Stdout() io.Writer
	// Log records a message with a severity.
	Log(level domain.LogLevel, msg string)
	// Complete marks the vertex as finished.
	Complete(err error)
	// Cached marks the vertex as satisfied without work.
	Cached()
}
