package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*RecorderBridge)(nil)

// RecorderBridge implements sdktrace.SpanProcessor, turning each span into a recorder vertex.
type RecorderBridge struct {
	recorder ports.Recorder
	vertices sync.Map
}

// NewRecorderBridge returns a bridge feeding recorder. A nil recorder disables it.
func NewRecorderBridge(recorder ports.Recorder) *RecorderBridge {
	return &RecorderBridge{recorder: recorder}
}

// OnStart opens a vertex for the span.
func (b *RecorderBridge) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if b.recorder == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}
	name := s.Name()
	if stage := stageOf(s.Attributes()); stage != "" {
		name = "[" + stage + "] " + name
	}
	b.vertices.Store(sc.SpanID(), b.recorder.Record(parent, sc.SpanID().String(), name))
}

// OnEnd completes the span's vertex, carrying its error status and log events.
func (b *RecorderBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	v, ok := b.vertices.LoadAndDelete(s.SpanContext().SpanID())
	if !ok {
		return
	}
	vertex := v.(ports.Vertex) //nolint:forcetypeassert // Only vertices are stored

	for _, ev := range s.Events() {
		if ev.Name != "log" {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == "message" {
				_, _ = vertex.Stdout().Write([]byte(attr.Value.AsString()))
			}
		}
	}

	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "task failed"
		}
		vertex.Log(domain.LogLevelError, desc)
		vertex.Complete(errors.New(desc))
		return
	}
	vertex.Complete(nil)
}

// ForceFlush does nothing.
func (b *RecorderBridge) ForceFlush(context.Context) error { return nil }

// Shutdown closes the recorder.
func (b *RecorderBridge) Shutdown(context.Context) error {
	if b.recorder == nil {
		return nil
	}
	return b.recorder.Close()
}

func stageOf(attrs []attribute.KeyValue) string {
	for _, a := range attrs {
		if string(a.Key) == AttrStage {
			return a.Value.AsString()
		}
	}
	return ""
}
