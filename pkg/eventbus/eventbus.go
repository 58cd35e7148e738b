package eventbus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var droppedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "uiotest",
	Subsystem: "eventbus",
	Name:      "dropped_messages_count",
	Help:      "Messages not delivered because a subscriber queue was full",
}, []string{"topic"})

// EventBus is an in-process topic publish/subscribe hub.
// Publishing never blocks: a subscriber whose queue is full misses the message.
type EventBus interface {
	Publish(topic string, message any)
	Subscribe(topic string, bufSize int, filter Filter) Subscriber
}

// Subscriber receives the messages of one topic accepted by its filter.
type Subscriber interface {
	C() <-chan any
	// Unsubscribe detaches from the bus and closes C. Further calls are no-ops.
	Unsubscribe()
}

// Filter selects the messages delivered to a subscriber
type Filter func(any) bool

func MatchAll(any) bool {
	return true
}

// MatchType accepts messages of type T only.
func MatchType[T any](msg any) bool {
	_, ok := msg.(T)
	return ok
}

type eventBus struct {
	mu     sync.RWMutex
	topics map[string]map[*subscription]struct{}
}

type subscription struct {
	bus    *eventBus
	topic  string
	filter Filter
	ch     chan any
	once   sync.Once
}

// New returns an initialized EventBus.
func New() EventBus {
	return &eventBus{
		topics: make(map[string]map[*subscription]struct{}),
	}
}

func (eb *eventBus) Publish(topic string, message any) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for sub := range eb.topics[topic] {
		if !sub.filter(message) {
			continue
		}
		select {
		case sub.ch <- message:
		default:
			droppedMessages.WithLabelValues(topic).Inc()
		}
	}
}

// Subscribe to a topic. A nil filter accepts every message.
func (eb *eventBus) Subscribe(topic string, bufSize int, filter Filter) Subscriber {
	if filter == nil {
		filter = MatchAll
	}
	sub := &subscription{
		bus:    eb,
		topic:  topic,
		filter: filter,
		ch:     make(chan any, bufSize),
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if _, ok := eb.topics[topic]; !ok {
		eb.topics[topic] = make(map[*subscription]struct{})
	}
	eb.topics[topic][sub] = struct{}{}

	return sub
}

func (eb *eventBus) remove(sub *subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	delete(eb.topics[sub.topic], sub)
	if len(eb.topics[sub.topic]) == 0 {
		delete(eb.topics, sub.topic)
	}
	// closed under the write lock so no Publish can send on it afterwards
	close(sub.ch)
}

func (s *subscription) C() <-chan any {
	return s.ch
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s) })
}
