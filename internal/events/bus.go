package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	suitetypes "github.com/doganlap/shahin-grc/modules/suite/domain/types"
)

const TopicSuiteGenerated = "suite.generated"

// Envelope wraps a published event with its topic and publish time.
type Envelope struct {
	Topic   string
	At      time.Time
	Payload any
}

// Bus is an in-process pub/sub fanout. Delivery is best effort: a
// subscriber that stops draining loses events rather than stalling
// publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Envelope
	log    zerolog.Logger
	closed bool
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{subs: make(map[string][]chan Envelope), log: log}
}

func (b *Bus) Subscribe(topic string, buffer int) <-chan Envelope {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Envelope, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

func (b *Bus) Publish(_ context.Context, topic string, payload any) {
	envelope := Envelope{Topic: topic, At: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- envelope:
		default:
			b.log.Warn().Str("topic", topic).Msg("event dropped: subscriber not draining")
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = nil
}

// SuitePublisher adapts the bus to the generator's publisher port and logs
// each generation event.
type SuitePublisher struct {
	bus *Bus
	log zerolog.Logger
}

func NewSuitePublisher(bus *Bus, log zerolog.Logger) *SuitePublisher {
	return &SuitePublisher{bus: bus, log: log}
}

func (p *SuitePublisher) SuiteGenerated(ctx context.Context, event suitetypes.SuiteGeneratedEvent) {
	p.log.Info().
		Str("tenant_id", event.TenantID).
		Str("entity_id", event.EntityID).
		Int("suite_version", event.SuiteVersion).
		Int("control_count", event.ControlCount).
		Msg("suite generated")
	p.bus.Publish(ctx, TopicSuiteGenerated, event)
}
