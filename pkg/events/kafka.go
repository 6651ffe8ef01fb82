package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// producer is the subset of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher writes events to a Kafka topic keyed by source.
type KafkaPublisher struct {
	producer     producer
	topic        string
	logger       *slog.Logger
	deliveryChan chan kafka.Event

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewKafkaPublisher connects a producer using cfg.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	cm, err := cfg.ConfigMap()
	if err != nil {
		return nil, err
	}

	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, fmt.Errorf("events: create producer: %w", err)
	}

	kp := newKafkaPublisher(p, cfg.Topic, logger)
	kp.logger.Info("kafka publisher created", "servers", cfg.BootstrapServers, "topic", cfg.Topic)
	return kp, nil
}

func newKafkaPublisher(p producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	kp := &KafkaPublisher{
		producer:     p,
		topic:        topic,
		logger:       logger,
		deliveryChan: make(chan kafka.Event, 1000),
		ctx:          ctx,
		cancel:       cancel,
	}

	kp.wg.Add(1)
	go kp.handleDeliveryReports()
	return kp
}

// handleDeliveryReports counts delivery reports until the publisher is
// closed, then counts whatever is still buffered and returns.
func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.ctx.Done():
			for {
				select {
				case e := <-kp.deliveryChan:
					kp.record(e)
				default:
					return
				}
			}
		case e := <-kp.deliveryChan:
			kp.record(e)
		}
	}
}

func (kp *KafkaPublisher) record(e kafka.Event) {
	m, ok := e.(*kafka.Message)
	if !ok {
		return
	}
	if m.TopicPartition.Error != nil {
		kp.failed.Add(1)
		kp.logger.Warn("event delivery failed", "error", m.TopicPartition.Error)
		return
	}
	kp.acked.Add(1)
}

// Publish enqueues one event. Retriable broker errors such as a full local
// queue are retried with a short backoff until ctx is done.
func (kp *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if kp.closed.Load() {
		return ErrClosed
	}

	value, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Source),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "occupancy", Value: []byte(e.Occupancy)},
			{Key: "relay", Value: []byte(e.Relay)},
		},
		Timestamp: e.At,
	}

	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		err = kp.producer.Produce(msg, kp.deliveryChan)
		if err == nil {
			kp.sent.Add(1)
			return nil
		}

		var kerr kafka.Error
		if !errors.As(err, &kerr) || !kerr.IsRetriable() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	kp.failed.Add(1)
	return fmt.Errorf("events: produce: %w", err)
}

// Flush waits for outstanding deliveries and returns how many remain.
func (kp *KafkaPublisher) Flush(timeout time.Duration) int {
	return kp.producer.Flush(int(timeout.Milliseconds()))
}

// Metrics returns delivery counters.
func (kp *KafkaPublisher) Metrics() map[string]int64 {
	return map[string]int64{
		"sent":   kp.sent.Load(),
		"acked":  kp.acked.Load(),
		"failed": kp.failed.Load(),
	}
}

// Close flushes pending events, counts every delivery report already
// received and shuts the producer down.
func (kp *KafkaPublisher) Close() error {
	kp.closeOnce.Do(func() {
		kp.closed.Store(true)
		if remaining := kp.Flush(5 * time.Second); remaining > 0 {
			kp.logger.Warn("unflushed events on close", "remaining", remaining)
		}
		kp.cancel()
		kp.wg.Wait()
		kp.producer.Close()
		kp.logger.Info("kafka publisher closed", "metrics", kp.Metrics())
	})
	return nil
}
