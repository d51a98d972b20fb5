// Package messaging connects the checker to NATS: evaluation requests arrive
// on a request/reply subject and verdict side effects are published as
// events and commands for other services to act on.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NATS subjects.
const (
	SubjectEvaluate = "chatguard.evaluate"
	SubjectEvents   = "chatguard.events" // + .<kind>
	SubjectCommands = "chatguard.commands"

	// QueueGroup load-balances evaluation requests across instances.
	QueueGroup = "chatguard"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int    // -1 for infinite
	ConnectRetries uint64 // initial connection attempts before giving up
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "chatguard",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectRetries: 5,
	}
}

// NATSClient wraps the NATS connection and tracks subscriptions for cleanup.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSClient connects with retry and returns a ready client.
func NewNATSClient(ctx context.Context, config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.Warnf("nats disconnected: %v", err)
			} else {
				logrus.Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logrus.Info("nats connection closed")
		}),
	}

	var nc *nats.Conn
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.ConnectRetries), ctx)
	err := backoff.Retry(func() error {
		var err error
		nc, err = nats.Connect(config.URL, opts...)
		if err != nil {
			logrus.Warnf("NATS connection failed: %v, retrying...", err)
		}
		return err
	}, b)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", config.URL, err)
	}

	logrus.Infof("connected to NATS at %s", nc.ConnectedUrl())

	return &NATSClient{conn: nc}, nil
}

// Publish sends data to subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Connected reports whether the connection is currently up.
func (c *NATSClient) Connected() bool {
	return c.conn.IsConnected()
}

// ServeEvaluate answers evaluation requests with h until Close. Each request
// is handled with ctx as the parent, joined to the caller's trace when the
// message carries trace headers.
func (c *NATSClient) ServeEvaluate(ctx context.Context, h *EvaluateHandler) error {
	sub, err := c.conn.QueueSubscribe(SubjectEvaluate, QueueGroup, func(msg *nats.Msg) {
		reqCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))

		// Handle always returns a response body; errors are already logged.
		resp, _ := h.Handle(reqCtx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(resp); err != nil {
			logrus.Errorf("failed to respond on %s: %v", msg.Reply, err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectEvaluate, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	logrus.Infof("serving evaluations on %s (queue %s)", SubjectEvaluate, QueueGroup)
	return nil
}

// Close drains subscriptions and the connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			logrus.Warnf("nats drain %s: %v", sub.Subject, err)
		}
	}
	c.subs = nil

	if err := c.conn.Drain(); err != nil {
		logrus.Warnf("nats connection drain: %v", err)
	}
}
