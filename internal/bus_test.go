package internal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waustin14/storyfill/internal"
)

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := internal.NewBus()
	sub := bus.Subscribe("room_1")
	defer sub.Close()

	bus.Publish(internal.RoomEvent{Type: internal.EventRoomSnapshot, RoomID: "room_1", Payload: "snap-1"})

	select {
	case evt := <-sub.Events:
		assert.Equal(t, "snap-1", evt.Payload)
	default:
		t.Fatal("expected an event to be buffered")
	}
}

func TestBusPublishIsScopedToRoom(t *testing.T) {
	bus := internal.NewBus()
	subA := bus.Subscribe("room_a")
	subB := bus.Subscribe("room_b")
	defer subA.Close()
	defer subB.Close()

	bus.Publish(internal.RoomEvent{Type: internal.EventRoomSnapshot, RoomID: "room_a", Payload: "only-for-a"})

	select {
	case evt := <-subA.Events:
		assert.Equal(t, "only-for-a", evt.Payload)
	default:
		t.Fatal("subscriber A should have received its room's event")
	}
	select {
	case <-subB.Events:
		t.Fatal("subscriber B should not receive room A's event")
	default:
	}
}

func TestBusCoalescesStaleSnapshots(t *testing.T) {
	bus := internal.NewBus()
	sub := bus.Subscribe("room_1")
	defer sub.Close()

	for i := 0; i < 100; i++ {
		bus.Publish(internal.RoomEvent{Type: internal.EventRoomSnapshot, RoomID: "room_1", Payload: i})
	}

	var last any
	drained := 0
	for {
		select {
		case evt := <-sub.Events:
			last = evt.Payload
			drained++
		default:
			goto done
		}
	}
done:
	require.Greater(t, drained, 0)
	assert.Equal(t, 99, last, "coalescing should keep only the newest snapshot once the buffer is full")
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	bus := internal.NewBus()
	sub := bus.Subscribe("room_1")

	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })
}

func TestBusPublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	bus := internal.NewBus()
	sub := bus.Subscribe("room_1")
	sub.Close()

	assert.NotPanics(t, func() {
		bus.Publish(internal.RoomEvent{Type: internal.EventRoomSnapshot, RoomID: "room_1", Payload: "after-close"})
	})
}
