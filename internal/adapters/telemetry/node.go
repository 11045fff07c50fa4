package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/depot/internal/adapters/telemetry/progrock"
	"go.trai.ch/depot/internal/core/ports"
)

// TracerNodeID is the unique identifier for the tracer Graft node.
const TracerNodeID graft.ID = "adapter.telemetry"

// InstrumentationName names the tracer.
const InstrumentationName = "go.trai.ch/depot"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{progrock.NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			rec, err := graft.Dep[ports.Recorder](ctx)
			if err != nil {
				return nil, err
			}
			return NewOTelTracer(InstrumentationName, NewRecorderBridge(rec)), nil
		},
	})
}
