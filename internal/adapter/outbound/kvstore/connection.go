package kvstore

import (
	"context"
	"fmt"
	"granulemigration/internal/application/common/logging"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/config"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultConnectTimeout = 5 * time.Second

// Connect opens a NATS connection to the source store. Connection state
// changes are logged as source connection events.
func Connect(ctx context.Context, cfg config.NATSConfig) (*nats.Conn, error) {
	logger := slogger.WithComponent("kvstore")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := []nats.Option{
		nats.Name("granule-migration"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(timeout),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.LogSourceConnectionEvent(ctx, logging.SourceConnectionEvent{
				Type:      "RECONNECTED",
				ServerURL: conn.ConnectedUrlRedacted(),
				Success:   true,
			})
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.LogSourceConnectionEvent(ctx, logging.SourceConnectionEvent{
				Type:      "DISCONNECTED",
				ServerURL: cfg.URL,
				Error:     err,
			})
		}),
	}

	start := time.Now()
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.LogSourceConnectionEvent(ctx, logging.SourceConnectionEvent{
			Type:      "CONNECTION_FAILED",
			ServerURL: cfg.URL,
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.LogSourceConnectionEvent(ctx, logging.SourceConnectionEvent{
		Type:      "CONNECTED",
		ServerURL: conn.ConnectedUrlRedacted(),
		Duration:  time.Since(start),
		Success:   true,
	})
	return conn, nil
}
