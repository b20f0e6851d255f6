package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	log "github.com/sirupsen/logrus"
)

type KafkaOptions struct {
	Broker   string
	Topic    string
	GroupID  string
	Username string
	Password string
	TLS      bool
}

func (o KafkaOptions) transport() *kafka.Transport {
	t := &kafka.Transport{}
	if o.Username != "" {
		t.SASL = plain.Mechanism{
			Username: o.Username,
			Password: o.Password,
		}
	}
	if o.TLS {
		t.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return t
}

const (
	producerBuffer = 1024
	producerBatch  = 100
	writeTimeout   = 10 * time.Second
)

var (
	ErrProducerClosed = errors.New("kafka producer closed")
	ErrProducerFull   = errors.New("kafka producer buffer full, event dropped")
)

// Producer queues records in memory and writes them from one background
// goroutine, so PublishMessage never waits on the broker.
type Producer struct {
	writer    *kafka.Writer
	onFailure []func(n int, err error)

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

// NewProducer starts the writer loop. onFailure hears about records the
// loop could not deliver.
func NewProducer(opts KafkaOptions, onFailure ...func(n int, err error)) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:            kafka.TCP(opts.Broker),
			Topic:           opts.Topic,
			Balancer:        &kafka.Hash{},
			RequiredAcks:    kafka.RequireAll,
			MaxAttempts:     3,
			WriteBackoffMax: 500 * time.Millisecond,
			Transport:       opts.transport(),
			WriteTimeout:    writeTimeout,
		},
		onFailure: onFailure,
		queue:     make(chan kafka.Message, producerBuffer),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishMessage queues one record keyed by event type, so all events of
// a type land on the same partition.
func (p *Producer) PublishMessage(key, value []byte) error {
	if p == nil || p.writer == nil {
		log.Debug("kafka producer not ready - skip publish")
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	select {
	case p.queue <- kafka.Message{Key: key, Value: value, Time: time.Now()}:
		return nil
	default:
		return ErrProducerFull
	}
}

func (p *Producer) run() {
	defer close(p.done)
	batch := make([]kafka.Message, 0, producerBatch)
	for msg := range p.queue {
		batch = append(batch[:0], msg)
	fill:
		for len(batch) < producerBatch {
			select {
			case next, ok := <-p.queue:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		p.write(batch)
	}
}

func (p *Producer) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		log.WithError(err).WithField("messages", len(batch)).Warn("kafka delivery failed")
		for _, fn := range p.onFailure {
			fn(len(batch), err)
		}
	}
}

// Close stops accepting records, flushes what is queued and closes the
// writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
