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

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/minstrel/event"
)

func TestEventBusSingleSubscriber(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		require.Equal(t, testEvtType, evt.Type)
		require.Equal(t, 999, evt.Data)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subChA := eb.Subscribe(testEvtType)
	_, subChB := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "payload"))
	for _, subCh := range []<-chan event.Event{subChA, subChB} {
		select {
		case evt := <-subCh:
			require.Equal(t, "payload", evt.Data)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestEventBusSubscribeFunc(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	received := make(chan event.Event, 1)
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		received <- evt
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 7))
	select {
	case evt := <-received:
		require.Equal(t, 7, evt.Data)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for handler")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	_, ok := <-subCh
	require.False(t, ok, "expected channel to be closed")
}

func TestEventBusUnsubscribeDuringBlockedPublish(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	// Fill the subscriber buffer so the next publish blocks in the send
	for range event.EventQueueSize {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
	}
	published := make(chan struct{})
	go func() {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, "blocked"))
		close(published)
	}()
	// Give the publisher time to block on the full channel
	time.Sleep(50 * time.Millisecond)
	unsubscribed := make(chan struct{})
	go func() {
		eb.Unsubscribe(testEvtType, subId)
		close(unsubscribed)
	}()
	// Drain the channel so the in-flight send can complete; the close must
	// wait for it instead of panicking the publisher
	drained := make(chan struct{})
	go func() {
		for range subCh {
		}
		close(drained)
	}()
	for _, waitCh := range []chan struct{}{published, unsubscribed, drained} {
		select {
		case <-waitCh:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for publish/unsubscribe to settle")
		}
	}
}

func TestEventBusPublishAfterUnsubscribeDropped(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	_, ok := <-subCh
	require.False(t, ok, "expected channel to be closed")
	// Publishing to a type with no remaining subscribers must not panic
	eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
}

func TestEventBusPublishAsync(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	var count atomic.Int64
	done := make(chan struct{})
	eb.SubscribeFunc(testEvtType, func(event.Event) {
		if count.Add(1) == 3 {
			close(done)
		}
	})
	for range 3 {
		require.True(
			t,
			eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, nil)),
		)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for async events")
	}
}

func TestEventBusPublishAsyncAfterStop(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil, nil)
	eb.Stop()
	require.False(
		t,
		eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, nil)),
	)
}

func TestEventBusDifferentTypesIsolated(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe("type.a")
	eb.Publish("type.b", event.NewEvent("type.b", nil))
	select {
	case <-subCh:
		t.Fatal("received event of wrong type")
	case <-time.After(100 * time.Millisecond):
	}
}
