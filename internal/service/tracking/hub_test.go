package tracking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/tracking"
)

func TestHub_DeliversOnlyToSameRequest(t *testing.T) {
	t.Parallel()

	h := tracking.NewHub()
	mine, cancelMine := h.Subscribe("req-1")
	defer cancelMine()
	other, cancelOther := h.Subscribe("req-2")
	defer cancelOther()

	h.Publish(event("a", domain.DeliveryAssigned, t0, 0))

	select {
	case ev := <-mine:
		require.Equal(t, "a", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	h := tracking.NewHub()
	ch, cancel := h.Subscribe("req-1")
	require.Equal(t, 1, h.Subscribers("req-1"))

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, h.Subscribers("req-1"))

	h.Publish(event("a", domain.DeliveryAssigned, t0, 0))
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	h := tracking.NewHub()
	_, cancel := h.Subscribe("req-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(event("x", domain.DeliveryOnTheWay, t0, 0.01))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	h := tracking.NewHub()
	ch, cancel := h.Subscribe("req-1")
	h.Close()

	_, ok := <-ch
	require.False(t, ok)
	cancel()

	late, _ := h.Subscribe("req-1")
	_, ok = <-late
	require.False(t, ok)
}
