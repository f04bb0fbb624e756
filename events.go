package cxmarket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
)

const (
	EventListed   = "listed"
	EventDelisted = "delisted"
	EventSold     = "sold"

	MarketTopic = "cxmarket_events"
)

// MarketEvent is the envelope pushed to subscribers and the kafka sink.
// Sale is set for sold events only.
type MarketEvent struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Listing   schema.Listing `json:"listing"`
	Sale      *schema.Sale   `json:"sale,omitempty"`
	EmittedAt int64          `json:"emittedAt"`
}

type KWriter struct {
	w *kafka.Writer
}

func NewKWriter(topic string, uri string) (*KWriter, error) {
	w := &kafka.Writer{
		Addr:     kafka.TCP(uri),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KWriter{w: w}, nil
}

func (kw *KWriter) Write(body []byte) error {
	return kw.w.WriteMessages(context.Background(), kafka.Message{Value: body})
}

func (kw *KWriter) Close() {
	kw.w.Close()
}

// EventBus fans market events out to in-process subscribers on a worker
// pool, and mirrors them to kafka when a writer is configured. A nil bus
// is silent; the engine never checks.
type EventBus struct {
	mu     sync.Mutex
	subs   []func(MarketEvent)
	pool   *ants.PoolWithFunc
	writer *KWriter
}

func NewEventBus(writer *KWriter) *EventBus {
	bus := &EventBus{writer: writer}
	p, _ := ants.NewPoolWithFunc(20, func(i interface{}) {
		ev := i.(MarketEvent)
		bus.dispatch(ev)
	})
	bus.pool = p
	return bus
}

func (b *EventBus) Subscribe(fn func(MarketEvent)) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *EventBus) Emit(kind string, listing schema.Listing, sale *schema.Sale) {
	b.EmitWithID(uuid.NewString(), kind, listing, sale)
}

// EmitWithID lets the caller pin the event id, so a sale row and its event
// share one identifier.
func (b *EventBus) EmitWithID(id, kind string, listing schema.Listing, sale *schema.Sale) {
	if b == nil {
		return
	}
	ev := MarketEvent{
		ID:        id,
		Kind:      kind,
		Listing:   listing.Clone(),
		Sale:      sale,
		EmittedAt: time.Now().Unix(),
	}
	if err := b.pool.Invoke(ev); err != nil {
		log.Error("emit market event failed", "kind", kind, "err", err)
	}
}

func (b *EventBus) dispatch(ev MarketEvent) {
	b.mu.Lock()
	subs := make([]func(MarketEvent), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	if b.writer != nil {
		body, err := json.Marshal(ev)
		if err != nil {
			log.Error("marshal market event failed", "err", err)
			return
		}
		if err := b.writer.Write(body); err != nil {
			log.Error("write market event to kafka failed", "id", ev.ID, "err", err)
		}
	}
}

func (b *EventBus) Close() {
	if b == nil {
		return
	}
	b.pool.Release()
	if b.writer != nil {
		b.writer.Close()
	}
}
