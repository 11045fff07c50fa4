// Package progrock records task progress on a progrock tape.
package progrock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/depot/internal/core/ports"
)

var _ ports.Recorder = (*Recorder)(nil)

// Recorder implements ports.Recorder using progrock.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a Recorder writing to an in-memory tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{w: w, rec: progrock.NewRecorder(w)}
}

// Record starts a vertex identified by the digest of id.
func (r *Recorder) Record(_ context.Context, id, name string) ports.Vertex {
	return &Vertex{vertex: r.rec.Vertex(digest.FromString(id), name)}
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
