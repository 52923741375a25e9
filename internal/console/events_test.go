package console_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/console"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := console.NewBroadcaster()

	a, cancelA := b.Subscribe()
	defer cancelA()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Publish(console.Event{Type: console.EventTenantSwitched, TenantID: "tenant-2"})

	got := <-a
	assert.Equal(t, console.EventTenantSwitched, got.Type)
	assert.Equal(t, "tenant-2", got.TenantID)
	got = <-c
	assert.Equal(t, console.EventTenantSwitched, got.Type)
}

func TestBroadcaster_CancelStopsDelivery(t *testing.T) {
	b := console.NewBroadcaster()

	ch, cancel := b.Subscribe()
	cancel()

	// The channel is closed on cancel and publishes no longer reach it.
	b.Publish(console.Event{Type: console.EventCatalogRefreshed})
	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := console.NewBroadcaster()

	ch, cancel := b.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; Publish must not block.
	for i := 0; i < 50; i++ {
		b.Publish(console.Event{Type: console.EventCatalogRefreshed})
	}

	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			require.Less(t, n, 50)
			return
		}
	}
}
