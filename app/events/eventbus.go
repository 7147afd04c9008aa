package events

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 64

// SubscriberID identifies an EventBus subscription
type SubscriberID string

type subscriber struct {
	id      SubscriberID
	channel chan *Event
}

// EventBus is an in-process Publisher that fans events out to subscriber
// channels. A subscriber whose buffer is full misses the event.
type EventBus struct {
	mtx         sync.RWMutex
	subscribers map[SubscriberID]*subscriber
}

// NewEventBus returns an EventBus with no subscribers
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[SubscriberID]*subscriber)}
}

// Subscribe registers a new subscriber and returns its id and event channel
func (eb *EventBus) Subscribe() (SubscriberID, <-chan *Event) {
	eb.mtx.Lock()
	defer eb.mtx.Unlock()

	id := SubscriberID(uuid.Must(uuid.NewV7()).String())
	sub := &subscriber{id: id, channel: make(chan *Event, subscriberBufferSize)}
	eb.subscribers[id] = sub

	log.Debugf("Subscriber %s added, %d subscribers", id, len(eb.subscribers))
	return id, sub.channel
}

// Unsubscribe removes a subscriber and closes its channel. It returns false
// if no such subscriber exists.
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	eb.mtx.Lock()
	defer eb.mtx.Unlock()

	sub, ok := eb.subscribers[id]
	if !ok {
		log.Warnf("Attempted to unsubscribe unknown subscriber %s", id)
		return false
	}
	delete(eb.subscribers, id)
	close(sub.channel)

	log.Debugf("Subscriber %s removed, %d subscribers", id, len(eb.subscribers))
	return true
}

// Publish implements Publisher
func (eb *EventBus) Publish(event *Event) {
	eb.mtx.RLock()
	defer eb.mtx.RUnlock()

	if len(eb.subscribers) == 0 {
		log.Tracef("No subscribers for event %s", event)
		return
	}
	for id, sub := range eb.subscribers {
		select {
		case sub.channel <- event:
		default:
			log.Warnf("Subscriber %s is full, dropping event %s", id, event)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mtx.RLock()
	defer eb.mtx.RUnlock()

	return len(eb.subscribers)
}
