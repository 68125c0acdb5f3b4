// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package event provides the asynchronous message bus that drives the
// minting pipeline. Status-transition events are published onto the bus and
// consumed by subscriber callbacks; delivery to a subscriber blocks, so a
// consumer that fails fast applies backpressure rather than dropping work.
package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// asyncEvent wraps an event with its type for the async queue
type asyncEvent struct {
	eventType EventType
	event     Event
}

// channelSubscriber guards its channel so that delivery and close can race
// safely: Deliver holds the read lock for the whole send, so Close waits
// for in-flight sends to finish before closing the channel, and a send
// never hits a closed channel.
type channelSubscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{
		ch: make(chan Event, buffer),
	}
}

// Deliver sends the event on the underlying channel, blocking until the
// consumer accepts it. Events for an already-closed subscriber are dropped.
func (c *channelSubscriber) Deliver(evt Event) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	defer c.mu.RUnlock()
	c.ch <- evt
}

// Close closes the channel so SubscribeFunc goroutines exit. Idempotent.
func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*channelSubscriber
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopped    bool
	stopMu     sync.RWMutex
}

// NewEventBus creates a new EventBus with an async worker pool. A nil
// registry disables metrics; a nil logger falls back to the default.
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	e := &EventBus{
		subscribers: make(
			map[EventType]map[EventSubscriberId]*channelSubscriber,
		),
		logger: logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

// asyncWorker processes events from the async queue
func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case ae, ok := <-e.asyncQueue:
			if !ok {
				return
			}
			e.Publish(ae.eventType, ae.event)
		}
	}
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(
			map[EventSubscriberId]*channelSubscriber,
		)
	}
	chSub := newChannelSubscriber(EventQueueSize)
	e.subscribers[eventType][subId] = chSub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, chSub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func(evtCh <-chan Event, handlerFunc EventHandlerFunc) {
		for {
			evt, ok := <-evtCh
			if !ok {
				return
			}
			handlerFunc(evt)
		}
	}(evtCh, handlerFunc)
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var subToClose *channelSubscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok2 := evtTypeSubs[subId]; ok2 {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(string(eventType)).
					Dec()
			}
		}
	}
	e.mu.Unlock()
	// Close outside the bus lock so a blocked delivery can finish first
	if subToClose != nil {
		subToClose.Close()
	}
}

// Publish allows a producer to send an event of a particular type to all subscribers
func (e *EventBus) Publish(eventType EventType, evt Event) {
	// Gather subscribers inside the read lock to avoid a map race, deliver
	// outside it to preserve per-subscriber blocking semantics
	e.mu.RLock()
	subs := e.subscribers[eventType]
	subList := make([]*channelSubscriber, 0, len(subs))
	for _, sub := range subs {
		subList = append(subList, sub)
	}
	e.mu.RUnlock()
	for _, sub := range subList {
		sub.Deliver(evt)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// PublishAsync enqueues an event for asynchronous delivery to all
// subscribers and returns immediately. Returns false if the EventBus is
// stopped or the async queue is full.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.stopMu.RLock()
	if e.stopped {
		e.stopMu.RUnlock()
		return false
	}
	e.stopMu.RUnlock()

	select {
	case e.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"type",
			eventType,
		)
		if e.metrics != nil {
			e.metrics.eventsDropped.WithLabelValues(string(eventType)).Inc()
		}
		return false
	}
}

// Stop shuts down the async worker pool and closes all subscriber
// channels so SubscribeFunc goroutines exit cleanly.
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	wasStopped := e.stopped
	e.stopped = true
	e.stopMu.Unlock()
	if !wasStopped {
		close(e.stopCh)
		e.asyncWg.Wait()
	}

	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]*channelSubscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subsCopy {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
