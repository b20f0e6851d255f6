package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"time"

	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	log "github.com/sirupsen/logrus"
)

const readRetryDelay = time.Second

type KafkaConsumer struct {
	Reader      *kafka.Reader
	Handler     interfaces.ConsumerHandler
	ServiceName string
}

func NewKafkaConsumer(opts KafkaOptions, handler interfaces.ConsumerHandler) *KafkaConsumer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if opts.Username != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: opts.Username,
			Password: opts.Password,
		}
	}
	if opts.TLS {
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{opts.Broker},
		GroupID:  opts.GroupID,
		Topic:    opts.Topic,
		MinBytes: 1,
		MaxBytes: 10e6, //10MB
		Dialer:   dialer,
	})

	return &KafkaConsumer{
		Reader:      reader,
		Handler:     handler,
		ServiceName: "IMS Card Events",
	}
}

// Listen reads until ctx is cancelled or the reader is closed. Read errors
// back off for readRetryDelay. Handler errors are logged and the message is
// still committed.
func (kc *KafkaConsumer) Listen(ctx context.Context) error {
	entry := log.WithField("consumer", kc.ServiceName)
	for {
		msg, err := kc.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			entry.WithError(err).Warn("read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		entry.WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Debug("received")

		if err := kc.Handler.HandleMessage(string(msg.Value)); err != nil {
			entry.WithError(err).Warn("handler error")
		}
	}
}

func (kc *KafkaConsumer) Close() error {
	return kc.Reader.Close()
}
