package communication

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/NethermindEth/masp/logger"
)

// DefaultSubjectPrefix prefixes every published subject.
const DefaultSubjectPrefix = "masp.events"

// NatsPublisher publishes engine events as JSON on NATS subjects
// "<prefix>.<lowercased event type>".
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *logger.Logger
}

// NewNatsPublisher connects to url. Reconnects are retried forever.
func NewNatsPublisher(url, prefix string, log *logger.Logger) (*NatsPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	conn, err := nats.Connect(url,
		nats.Name("masp"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(logger.SYSTEM, "nats disconnected: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NatsPublisher{conn: conn, prefix: prefix, log: log}, nil
}

func (p *NatsPublisher) Publish(eventType string, payload any) {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		p.log.Error("nats publish", "%v", err)
		return
	}
	data, err := jsonEvent(ev)
	if err != nil {
		p.log.Error("nats publish", "%v", err)
		return
	}
	if err := p.conn.Publish(Subject(p.prefix, eventType), data); err != nil {
		p.log.Error("nats publish", "%s: %v", eventType, err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}

// StartEmbeddedServer runs an in-process NATS server on host:port.
// Port -1 picks a random free port.
func StartEmbeddedServer(host string, port int) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded nats server did not become ready")
	}
	return ns, nil
}
