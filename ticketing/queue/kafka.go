package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka-backed job queue.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// DefaultKafkaConfig returns a single local broker and the ingestion topic
// and consumer group names.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "ticketing-ingestion",
		GroupID:      "ticketing-pipeline",
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
	}
}

// KafkaQueue implements Queue on top of a single Kafka topic.
type KafkaQueue struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafkaQueue dials the brokers and sets up a writer/reader pair for the
// configured topic.
func NewKafkaQueue(ctx context.Context, cfg KafkaConfig) (*KafkaQueue, error) {
	if cfg.Topic == "" {
		cfg = DefaultKafkaConfig()
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer conn.Close()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})

	return &KafkaQueue{cfg: cfg, writer: writer, reader: reader}, nil
}

func (q *KafkaQueue) Enqueue(ctx context.Context, ticketID string) error {
	job := &Job{ID: uuid.New().String(), TicketID: ticketID, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	msg := kafka.Message{Key: []byte(job.ID), Value: data, Time: job.EnqueuedAt}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Consume(ctx context.Context) (*Job, error) {
	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	job.ackToken = msg
	return &job, nil
}

// Ack commits the message's offset, marking it processed for the consumer
// group.
func (q *KafkaQueue) Ack(ctx context.Context, job *Job) error {
	msg, ok := job.ackToken.(kafka.Message)
	if !ok {
		return nil
	}
	if err := q.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to commit offset: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
