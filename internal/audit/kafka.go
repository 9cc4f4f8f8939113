package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"fireguard/internal/logger"
)

// messageWriter is the slice of kafka.Writer the recorder needs; tests swap in
// a fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder ships audit events to a Kafka topic so downstream consumers
// can inspect them later. Record is non-blocking: events are queued to a
// background writer and dropped (with a log line) when the queue is full, so
// the ingestion path never stalls on the broker.
type KafkaRecorder struct {
	writer messageWriter
	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// KafkaConfig configures the audit topic writer.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

// NewKafkaRecorder creates the Kafka-backed sink and starts its writer loop.
func NewKafkaRecorder(cfg KafkaConfig) (*KafkaRecorder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	r := &KafkaRecorder{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{}, // partition by device
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
			MaxAttempts:  3,
		},
		events: make(chan Event, cfg.QueueSize),
	}

	r.wg.Add(1)
	go r.run()

	return r, nil
}

func (r *KafkaRecorder) Record(ctx context.Context, deviceID int64, kind Kind, details map[string]interface{}) {
	ev := Event{
		DeviceID: deviceID,
		Kind:     kind,
		Details:  details,
		At:       time.Now().UTC(),
	}
	select {
	case r.events <- ev:
	default:
		log := logger.WithComponent("audit_kafka")
		log.Warn().
			Str("kind", string(kind)).
			Msg("audit queue full, dropping event")
	}
}

// run drains the queue until Close.
func (r *KafkaRecorder) run() {
	defer r.wg.Done()
	log := logger.WithComponent("audit_kafka")

	for ev := range r.events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("failed to serialize audit event")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = r.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.DeviceID, 10)),
			Value: data,
			Time:  ev.At,
		})
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Str("kind", string(ev.Kind)).
				Int64("device_id", ev.DeviceID).
				Msg("failed to publish audit event")
		}
	}
}

// Close flushes queued events and releases the writer.
func (r *KafkaRecorder) Close() error {
	var err error
	r.once.Do(func() {
		close(r.events)
		r.wg.Wait()
		err = r.writer.Close()
	})
	return err
}
