// Package kafka publishes crawl events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// Config controls the Kafka writer.
type Config struct {
	Brokers      []string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// keyed payloads choose their own partition key.
type keyed interface {
	Key() string
}

// Publisher writes JSON payloads to the topic named on each publish.
type Publisher struct {
	writer messageWriter
}

var _ crawler.Publisher = (*Publisher)(nil)

// New builds a Publisher. The writer carries no default topic; each message names its own.
func New(cfg Config) (*Publisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("publish.kafka.brokers is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return newWithWriter(&kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: false,
	}), nil
}

func newWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish marshals payload to JSON and writes it to topic. Payloads with a Key
// are hashed to a stable partition; the returned id is topic/key.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := kafkago.Message{Topic: topic, Value: data}
	if k, ok := payload.(keyed); ok {
		msg.Key = []byte(k.Key())
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("write kafka message: %w", err)
	}
	return fmt.Sprintf("%s/%s", topic, msg.Key), nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
