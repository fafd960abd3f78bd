package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"dppapi/internal/config"
)

// NATSPublisher publishes lifecycle events to a JetStream stream.
type NATSPublisher struct {
	logger *zap.Logger
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    config.NATSConfig
}

// NewNATSPublisher connects to NATS and ensures the stream exists.
func NewNATSPublisher(cfg config.NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("dppapi"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to JetStream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}

	return &NATSPublisher{logger: logger, conn: conn, js: js, cfg: cfg}, nil
}

var _ Publisher = (*NATSPublisher)(nil)

// PublishStatusChanged publishes the event as JSON on the configured subject.
func (p *NATSPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.cfg.Subject, payload); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// Close drains the connection so buffered publishes are flushed.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", zap.Error(err))
	}
}
