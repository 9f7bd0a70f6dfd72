// Package pubsub fans match events out to observers outside the process.
package pubsub

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher sends a payload on a subject. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(subject string, data []byte) error
	Close()
}

// EventSubject is the subject spectator-visible events of a match go to.
func EventSubject(code string) string {
	return "match." + code + ".events"
}

// NATS publishes on a NATS connection.
type NATS struct {
	nc *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string, log *zap.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("lanes-server"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATS{nc: nc}, nil
}

func (p *NATS) Publish(subject string, data []byte) error {
	return p.nc.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATS) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop discards everything. It is used when no NATS_URL is configured.
type Nop struct{}

func (Nop) Publish(string, []byte) error { return nil }
func (Nop) Close()                       {}
