package pubsub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Broker is a small in-memory pub/sub fan-out used to push live contest
// events (solves, board invalidations) to websocket subscribers. A new
// subscriber immediately receives the last event published on the topic so a
// freshly opened board view is not blank until the next solve.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	latest      map[string][]byte
}

// Event is the wire shape of a broker message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan []byte),
		latest:      make(map[string][]byte),
	}
}

// Subscribe registers for a topic and returns the receive channel plus an
// unsubscribe func. The latest cached event, if any, is delivered first.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	b.mu.Lock()

	ch := make(chan []byte, 64)
	if last, ok := b.latest[topic]; ok {
		ch <- last
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subscribers[topic]
		for i, sub := range subscribers {
			if sub == ch {
				b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
				close(ch)
				break
			}
		}
	}

	zap.S().Debugf("new subscription to topic %s", topic)
	return ch, unsubscribe
}

// Publish delivers an event to all live subscribers of a topic without
// blocking: a slow client's full channel drops the message for that client
// only.
func (b *Broker) Publish(topic string, msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[topic] = msg

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// FormatEvent marshals a typed event payload.
func FormatEvent(eventType string, data interface{}) []byte {
	bytes, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return []byte(`{"type":"error","data":"json format error"}`)
	}
	return bytes
}
