package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultFlushTimeout = 5 * time.Second

// natsConn is the part of *nats.Conn the publisher uses
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

// NATSPublisher publishes confirmed trade events to core NATS
type NATSPublisher struct {
	conn   natsConn
	config *config.NATSConfig
	logger *logger.Logger
}

var _ service.TradeEventPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(cfg *config.NATSConfig, logger *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		config: cfg,
		logger: logger.WithComponent("nats-publisher"),
	}
}

// Connect connects to the NATS server
func (n *NATSPublisher) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("energy-trading-dashboard"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.logger.Error("Failed to connect to NATS", zap.Error(err))
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n.conn = conn
	n.logger.Info("Connected to NATS", zap.String("subject_prefix", n.config.SubjectPrefix))
	return nil
}

// Publish sends the event to <prefix>.listed or <prefix>.sold.
// It is a no-op while disconnected.
func (n *NATSPublisher) Publish(ctx context.Context, event *entity.TradeEvent) error {
	if n.conn == nil {
		return nil
	}

	subject, err := n.subject(event.Kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error("Failed to publish trade event",
			zap.String("subject", subject),
			zap.String("tx_hash", event.TxHash),
			zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	n.logger.Debug("Published trade event",
		zap.String("subject", subject),
		zap.Uint64("listing_id", event.ListingID),
		zap.String("tx_hash", event.TxHash))
	return nil
}

func (n *NATSPublisher) subject(kind entity.TradeEventKind) (string, error) {
	switch kind {
	case entity.TradeEventListed:
		return n.config.SubjectPrefix + ".listed", nil
	case entity.TradeEventSold:
		return n.config.SubjectPrefix + ".sold", nil
	}
	return "", fmt.Errorf("unknown trade event kind %q", kind)
}

// Disconnect flushes pending messages and closes the connection
func (n *NATSPublisher) Disconnect() error {
	if n.conn == nil {
		return nil
	}
	timeout := n.config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	if err := n.conn.FlushTimeout(timeout); err != nil {
		n.logger.Warn("Failed to flush NATS connection", zap.Error(err))
	}
	n.conn.Close()
	n.conn = nil
	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS
func (n *NATSPublisher) IsConnected() bool {
	return n.conn != nil && n.conn.IsConnected()
}

// NopPublisher discards trade events
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, *entity.TradeEvent) error { return nil }
