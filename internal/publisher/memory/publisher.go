// Package memory keeps published crawl events in process for development runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Key     string
	Payload any
}

type keyed interface {
	Key() string
}

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

var _ crawler.Publisher = (*Publisher)(nil)

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns topic/sequence as its id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	msg := PublishedMessage{Topic: topic, Payload: payload}
	if k, ok := payload.(keyed); ok {
		msg.Key = k.Key()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return fmt.Sprintf("%s/%d", topic, len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Keys returns the keys published to topic, in publish order.
func (p *Publisher) Keys(topic string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var keys []string
	for _, m := range p.messages {
		if m.Topic == topic {
			keys = append(keys, m.Key)
		}
	}
	return keys
}
