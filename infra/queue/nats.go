package queue

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const eventTypeHeader = "Ims-Event-Type"

type NatsOptions struct {
	URL     string
	Token   string
	Subject string
}

func ConnectNats(opts NatsOptions, name string) (*nats.Conn, error) {
	natsOpts := []nats.Option{
		nats.Name(name),
	}

	// if token provided
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}

	return nats.Connect(opts.URL, natsOpts...)
}

type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNatsPublisher(conn *nats.Conn, subject string) *NatsPublisher {
	return &NatsPublisher{conn: conn, subject: subject}
}

func (p *NatsPublisher) PublishMessage(key, value []byte) error {
	if p == nil || p.conn == nil {
		log.Debug("nats publisher not ready - skip publish")
		return nil
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(eventTypeHeader, string(key))
	msg.Data = value
	return p.conn.PublishMsg(msg)
}

func (p *NatsPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

type NatsListener struct {
	conn    *nats.Conn
	subject string
	handler interfaces.ConsumerHandler
}

func NewNatsListener(conn *nats.Conn, subject string, handler interfaces.ConsumerHandler) *NatsListener {
	return &NatsListener{conn: conn, subject: subject, handler: handler}
}

func (l *NatsListener) Listen(ctx context.Context) error {
	sub, err := l.conn.Subscribe(l.subject, func(msg *nats.Msg) {
		if err := l.handler.HandleMessage(string(msg.Data)); err != nil {
			log.WithError(err).WithField("subject", msg.Subject).Warn("handler error")
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (l *NatsListener) Close() error {
	return l.conn.Drain()
}
