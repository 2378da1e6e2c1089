// Package events publishes submission events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/services"
)

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials url and returns a publisher writing to "<prefix>.<target>".
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name("cracks"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := newPublisher(nc, prefix, logger)
	p.nc = nc
	return p, nil
}

func newPublisher(conn publisher, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		prefix = "cracks.submissions"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject events for target are published on.
func (p *NATSPublisher) Subject(target string) string {
	return p.prefix + "." + target
}

func (p *NATSPublisher) PublishSubmission(ctx context.Context, ev services.SubmissionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}
	subject := p.Subject(ev.Target)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published submission", zap.String("subject", subject))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}

var _ services.SubmissionPublisher = (*NATSPublisher)(nil)
