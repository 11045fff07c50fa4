package app

import (
	"context"
	"fmt"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/download"
)

// RateSpanName names the span that receives transfer rate lines.
const RateSpanName = "transfer rate"

// FormatRate renders a sample as a human readable transfer rate.
func FormatRate(s domain.SpeedSample) string {
	const unit = 1024
	rate := s.BytesPerSecond()
	if rate < unit {
		return fmt.Sprintf("%.0f B/s", rate)
	}
	exp := 0
	for n := rate / unit; n >= unit && exp < 3; n /= unit {
		exp++
	}
	return fmt.Sprintf("%.1f %ciB/s", rate/float64(uint64(1)<<(10*(exp+1))), "KMGT"[exp])
}

// reportRates forwards every sample of meter to a dedicated span and to the registered callback.
// The returned function ends the span.
func reportRates(meter *download.SpeedMeter, tracer ports.Tracer, fn func(domain.SpeedSample)) func() {
	if meter == nil {
		return func() {}
	}
	if fn != nil {
		meter.Subscribe(fn)
	}
	if tracer == nil {
		return func() {}
	}

	_, span := tracer.Start(context.Background(), RateSpanName, ports.WithStage(download.StageName))
	meter.Subscribe(func(s domain.SpeedSample) {
		_, _ = fmt.Fprintln(span, FormatRate(s))
	})
	return span.End
}
