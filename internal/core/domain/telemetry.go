package domain

import "time"

// LogLevel represents the severity of a progress log line, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// SpeedSample is the number of bytes transferred during one sampling interval.
type SpeedSample struct {
	Bytes    int64
	Interval time.Duration
}

// BytesPerSecond converts the sample to a rate.
func (s SpeedSample) BytesPerSecond() float64 {
	if s.Interval <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Interval.Seconds()
}
