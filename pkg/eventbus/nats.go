// Package eventbus mirrors realtime events to NATS for out-of-process consumers.
// Delivery is best-effort: nothing here is acknowledged or replayed.
package eventbus

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSMirror publishes each event to "<prefix>.<event>".
type NATSMirror struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
}

// Connect dials url and returns a mirror publishing under prefix.
func Connect(url, prefix string) (*NATSMirror, error) {
	opts := []nats.Option{
		nats.Name("direct-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	m := newMirror(conn, prefix)
	m.conn = conn
	return m, nil
}

func newMirror(pub publisher, prefix string) *NATSMirror {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "dm.events"
	}
	return &NATSMirror{pub: pub, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (m *NATSMirror) Subject(event string) string {
	return m.prefix + "." + event
}

func (m *NATSMirror) Publish(event string, payload []byte) error {
	return m.pub.Publish(m.Subject(event), payload)
}

func (m *NATSMirror) IsConnected() bool {
	return m.conn != nil && m.conn.IsConnected()
}

// Close flushes pending publishes and closes the connection.
func (m *NATSMirror) Close() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed")
		m.conn.Close()
	}
}
