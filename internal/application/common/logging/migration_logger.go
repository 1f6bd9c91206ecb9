package logging

import (
	"context"
	"fmt"
	"time"
)

// SegmentEvent describes a lifecycle change of one parallel scan segment.
type SegmentEvent struct {
	Type          string // STARTED, COMPLETED, FAILED
	Segment       int
	TotalSegments int
	Pages         int
	Records       int
	Duration      time.Duration
	Error         error
}

// SourceConnectionEvent describes a connection to the source key-value store.
type SourceConnectionEvent struct {
	Type      string // CONNECTED, DISCONNECTED, RECONNECTED, CONNECTION_FAILED
	ServerURL string
	Bucket    string
	Duration  time.Duration
	Success   bool
	Error     error
}

// LogSegmentEvent logs scan segment lifecycle events
func (l *applicationLoggerImpl) LogSegmentEvent(ctx context.Context, event SegmentEvent) {
	fields := Fields{
		"event_type":     event.Type,
		"segment":        event.Segment,
		"total_segments": event.TotalSegments,
		"pages":          event.Pages,
		"records":        event.Records,
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration.String()
	}

	level := "DEBUG"
	message := fmt.Sprintf("Scan segment %d/%d %s", event.Segment, event.TotalSegments, event.Type)
	switch event.Type {
	case "COMPLETED":
		level = "INFO"
	case "FAILED":
		level = "ERROR"
	}

	l.logEvent(ctx, level, message, "scan_segment", fields, event.Error)
}

// LogSourceConnectionEvent logs source store connection events
func (l *applicationLoggerImpl) LogSourceConnectionEvent(ctx context.Context, event SourceConnectionEvent) {
	fields := Fields{
		"event_type": event.Type,
		"server_url": event.ServerURL,
		"bucket":     event.Bucket,
		"success":    event.Success,
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration.String()
	}

	level := "INFO"
	message := fmt.Sprintf("Source store %s", event.Type)
	if !event.Success || event.Type == "DISCONNECTED" {
		level = "WARN"
	}
	if event.Type == "CONNECTION_FAILED" {
		level = "ERROR"
	}

	l.logEvent(ctx, level, message, "source_connection", fields, event.Error)
}

func (l *applicationLoggerImpl) logEvent(ctx context.Context, level, message, operation string, fields Fields, err error) {
	if !l.shouldLog(level) {
		return
	}
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.logEntry(ctx, level, message, operation, errStr, fields)
}
