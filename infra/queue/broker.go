package queue

import (
	"fmt"

	"github.com/SundayYogurt/ims_service/config"
	"github.com/SundayYogurt/ims_service/internal/interfaces"
)

// Publisher is a closable event producer.
type Publisher interface {
	interfaces.ProducerHandler
	Close() error
}

func kafkaOptions(cfg config.Config) KafkaOptions {
	return KafkaOptions{
		Broker:   cfg.KafkaBroker,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		Username: cfg.KafkaUsername,
		Password: cfg.KafkaPassword,
		TLS:      cfg.KafkaTLS,
	}
}

func natsOptions(cfg config.Config) NatsOptions {
	return NatsOptions{
		URL:     cfg.NatsURL,
		Token:   cfg.NatsToken,
		Subject: cfg.NatsSubject,
	}
}

// NewPublisher returns the producer for EVENT_BROKER, or nil when events
// are disabled. onFailure hears about events lost after the publish call
// returned.
func NewPublisher(cfg config.Config, onFailure ...func(n int, err error)) (Publisher, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		return NewProducer(kafkaOptions(cfg), onFailure...), nil
	case config.BrokerNats:
		conn, err := ConnectNats(natsOptions(cfg), "ims-card-service")
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		return NewNatsPublisher(conn, cfg.NatsSubject), nil
	case config.BrokerNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported EVENT_BROKER %q", cfg.EventBroker)
	}
}

// NewListener subscribes handler to the configured event stream.
func NewListener(cfg config.Config, handler interfaces.ConsumerHandler) (interfaces.Listener, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		return NewKafkaConsumer(kafkaOptions(cfg), handler), nil
	case config.BrokerNats:
		conn, err := ConnectNats(natsOptions(cfg), "ims-events-tail")
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		return NewNatsListener(conn, cfg.NatsSubject, handler), nil
	default:
		return nil, fmt.Errorf("no event broker configured (EVENT_BROKER=%q)", cfg.EventBroker)
	}
}
