// Package kafka publishes one summary event per completed ingestion run to
// a Kafka topic. It is an optional collaborator: a Pipeline runs fine
// without one configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

// Publisher produces one message per RunSummary to the configured topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// Config holds the broker list and topic a Publisher writes to.
type Config struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a Publisher for cfg. Brokers is required to be
// non-empty; callers that did not configure Kafka should not construct one.
func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// summaryEvent is the wire shape published to the summary topic: a
// RunSummary plus the metadata a downstream consumer needs to key and
// route it without re-deriving anything from the request window.
type summaryEvent struct {
	RequestStart     time.Time `json:"requestStart"`
	RequestEnd       time.Time `json:"requestEnd"`
	FilesFetched     int       `json:"filesFetched"`
	FilesNotFound    int       `json:"filesNotFound"`
	FilesFailed      int       `json:"filesFailed"`
	StationsUpserted int       `json:"stationsUpserted"`
	StationsSkipped  int       `json:"stationsSkipped"`
	ChunksWritten    int       `json:"chunksWritten"`
	ErrorCount       int       `json:"errorCount"`
	DurationSeconds  float64   `json:"durationSeconds"`
}

// Publish serializes summary and writes it as a single message keyed by the
// request window's start instant. The writer's LeastBytes balancer does not
// route by key, so the key does not choose the partition.
func (p *Publisher) Publish(ctx context.Context, summary domain.RunSummary) error {
	msg, err := serializeToMessage(summary)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return domain.NewError(domain.Fatal, "kafka.Publish", fmt.Errorf("write summary event: %w", err))
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(summary domain.RunSummary) (kafkago.Message, error) {
	event := summaryEvent{
		RequestStart:     summary.Request.Start,
		RequestEnd:       summary.Request.End,
		FilesFetched:     summary.FilesFetched,
		FilesNotFound:    summary.FilesNotFound,
		FilesFailed:      summary.FilesFailed,
		StationsUpserted: summary.StationsUpserted,
		StationsSkipped:  summary.StationsSkipped,
		ChunksWritten:    summary.ChunksWritten,
		ErrorCount:       summary.ErrorCount,
		DurationSeconds:  summary.Duration.Seconds(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RequestStart.Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("ingest.run_summary")},
		},
	}, nil
}
