package events

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// NATSPublisher publishes item events as JSON on vault.items.<action>.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *log.Logger
}

func NewNATSPublisher(conn *nats.Conn, logger *log.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

func (p *NATSPublisher) Publish(ctx context.Context, event ItemEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal item event")
	}
	subject := Subject(event.Action)
	if err := p.conn.Publish(subject, payload); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	p.logger.Debug("Published item event", "subject", subject, "item_id", event.ItemID)
	return nil
}

// Connect dials NATS with reconnect handlers that log through logger.
func Connect(url string, logger *log.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("image-vault"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	return conn, nil
}
