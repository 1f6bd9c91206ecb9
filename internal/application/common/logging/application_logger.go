package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplicationLogger defines the interface for structured application logging
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger

	// Migration pipeline events
	LogSegmentEvent(ctx context.Context, event SegmentEvent)
	LogSourceConnectionEvent(ctx context.Context, event SourceConnectionEvent)
}

// Fields represents structured logging fields
type Fields map[string]interface{}

// Config represents logger configuration
type Config struct {
	Level  string
	Format string // json, text
	Output string // stdout, stderr, buffer (for testing)
}

// LogEntry represents the structure of log entries
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id"`
	Component     string                 `json:"component"`
	Operation     string                 `json:"operation,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Context keys for correlation ID management
type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
)

var levelOrder = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// applicationLoggerImpl implements ApplicationLogger
type applicationLoggerImpl struct {
	config    Config
	component string
	buffer    *syncBuffer // For testing
	logger    *log.Logger
}

// syncBuffer guards a bytes.Buffer shared by concurrent writers in tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewApplicationLogger creates a new application logger
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	logger := &applicationLoggerImpl{config: config}

	var out io.Writer
	switch config.Output {
	case "buffer":
		logger.buffer = &syncBuffer{}
		out = logger.buffer
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}
	logger.logger = log.New(out, "", 0)

	return logger, nil
}

// validateConfig validates logger configuration
func validateConfig(config Config) error {
	if _, ok := levelOrder[strings.ToUpper(config.Level)]; !ok {
		return fmt.Errorf("invalid log level: %s", config.Level)
	}
	if !slices.Contains([]string{"json", "text"}, config.Format) {
		return fmt.Errorf("invalid log format: %s", config.Format)
	}
	if !slices.Contains([]string{"stdout", "stderr", "buffer"}, config.Output) {
		return fmt.Errorf("invalid log output: %s", config.Output)
	}
	return nil
}

// shouldLog determines if a message should be logged based on level
func (l *applicationLoggerImpl) shouldLog(level string) bool {
	return levelOrder[level] >= levelOrder[strings.ToUpper(l.config.Level)]
}

// Debug logs debug messages
func (l *applicationLoggerImpl) Debug(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("DEBUG") {
		l.logEntry(ctx, "DEBUG", message, "", "", fields)
	}
}

// Info logs info messages
func (l *applicationLoggerImpl) Info(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("INFO") {
		l.logEntry(ctx, "INFO", message, "", "", fields)
	}
}

// Warn logs warning messages
func (l *applicationLoggerImpl) Warn(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("WARN") {
		l.logEntry(ctx, "WARN", message, "", "", fields)
	}
}

// Error logs error messages
func (l *applicationLoggerImpl) Error(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("ERROR") {
		l.logEntry(ctx, "ERROR", message, "", "", fields)
	}
}

// ErrorWithError logs error messages with an error object
func (l *applicationLoggerImpl) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	if l.shouldLog("ERROR") {
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		l.logEntry(ctx, "ERROR", message, "", errStr, fields)
	}
}

// LogPerformance logs performance metrics
func (l *applicationLoggerImpl) LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields) {
	if l.shouldLog("INFO") {
		merged := Fields{"duration": duration.String()}
		for k, v := range fields {
			merged[k] = v
		}
		l.logEntry(ctx, "INFO", fmt.Sprintf("Performance metrics for %s", operation), operation, "", merged)
	}
}

// WithComponent creates a new logger instance with a specific component
func (l *applicationLoggerImpl) WithComponent(component string) ApplicationLogger {
	return &applicationLoggerImpl{
		config:    l.config,
		component: component,
		buffer:    l.buffer,
		logger:    l.logger,
	}
}

// logEntry creates and logs a structured log entry
func (l *applicationLoggerImpl) logEntry(ctx context.Context, level, message, operation, errorStr string, fields Fields) {
	component := l.component
	if component == "" {
		component = "default"
	}

	entry := &LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Level:         level,
		Message:       message,
		CorrelationID: getOrGenerateCorrelationID(ctx),
		Component:     component,
		Operation:     operation,
		Error:         errorStr,
		Metadata:      make(map[string]interface{}, len(fields)),
	}

	for key, value := range fields {
		if key == "operation" && entry.Operation == "" {
			if op, ok := value.(string); ok {
				entry.Operation = op
			}
		}
		entry.Metadata[key] = value
	}

	l.writeLogEntry(entry)
}

// writeLogEntry handles the actual writing of log entries
func (l *applicationLoggerImpl) writeLogEntry(entry *LogEntry) {
	if l.config.Format == "json" {
		jsonData, err := json.Marshal(entry)
		if err != nil {
			return
		}
		l.logger.Println(string(jsonData))
		return
	}

	logLine := fmt.Sprintf("[%s] %s %s: %s", entry.Timestamp, entry.Level, entry.Component, entry.Message)
	if entry.Error != "" {
		logLine += " error=" + entry.Error
	}
	l.logger.Print(logLine)
}

// getOrGenerateCorrelationID gets correlation ID from context or generates a new one
func getOrGenerateCorrelationID(ctx context.Context) string {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		return correlationID
	}
	return uuid.New().String()
}

// WithCorrelationID returns a context carrying the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID returns the correlation ID carried by ctx, if any.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// getLoggerOutput returns every line written to a buffer-backed logger.
func getLoggerOutput(logger interface{}) []string {
	appLogger, ok := logger.(*applicationLoggerImpl)
	if !ok || appLogger.buffer == nil {
		return nil
	}
	output := strings.TrimSpace(appLogger.buffer.String())
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// BufferedOutput returns the entries written by a logger created with
// Output "buffer". Lines that are not JSON are skipped.
func BufferedOutput(logger ApplicationLogger) []LogEntry {
	var entries []LogEntry
	for _, line := range getLoggerOutput(logger) {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}
