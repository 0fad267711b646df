package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka backend.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"arimastream.predictions"`
	Compression  string        `yaml:"compression" default:"zstd"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

// messageWriter is the part of *kafka.Writer the backend uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBackend publishes records to one topic keyed by set name. A clear is
// published as a message with an "op: clear" header and no value, which
// consumers apply by dropping the set.
type KafkaBackend struct {
	writer messageWriter
	topic  string
}

// NewKafkaBackend creates a backend with a kafka-go writer.
func NewKafkaBackend(cfg KafkaConfig) (*KafkaBackend, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaBackend{writer: w, topic: cfg.Topic}, nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	default:
		return kafka.Zstd
	}
}

func (b *KafkaBackend) Insert(ctx context.Context, set string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		v, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(set),
			Value:   v,
			Time:    r.Timestamp,
			Headers: []kafka.Header{{Key: "op", Value: []byte("insert")}},
		})
	}
	return b.writer.WriteMessages(ctx, msgs...)
}

func (b *KafkaBackend) Clear(ctx context.Context, set string) error {
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(set),
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "op", Value: []byte("clear")}},
	})
}

func (b *KafkaBackend) Close() error {
	return b.writer.Close()
}
