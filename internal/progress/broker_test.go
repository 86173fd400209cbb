package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPushesConnected(t *testing.T) {
	b := NewBroker()
	ch := b.Open("batch-1")

	select {
	case ev := <-ch:
		assert.Equal(t, StatusConnected, ev.Status)
		assert.False(t, ev.Timestamp.IsZero())
	default:
		t.Fatal("expected a connected event")
	}
}

func TestPublishDeliversToRegisteredChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Open("batch-1")
	<-ch // connected

	b.Publish("batch-1", Event{Status: StatusStarted, Message: "go"})

	select {
	case ev := <-ch:
		assert.Equal(t, StatusStarted, ev.Status)
		assert.Equal(t, "go", ev.Message)
		assert.False(t, ev.Timestamp.IsZero())
	default:
		t.Fatal("expected a started event")
	}
}

func TestPublishWithoutRegistrationIsDropped(t *testing.T) {
	b := NewBroker()
	assert.NotPanics(t, func() {
		b.Publish("nobody", Event{Status: StatusStarted})
	})
}

func TestPublishFullChannelDropsEvent(t *testing.T) {
	b := NewBroker()
	ch := b.Open("batch-1")

	for i := 0; i < channelBuffer+5; i++ {
		b.Publish("batch-1", Event{Status: StatusProcessing})
	}

	// connected plus a full buffer; the overflow was dropped, not blocked on.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, channelBuffer, drained)
}

func TestOpenReplacesRegistrationWithoutClosingOld(t *testing.T) {
	b := NewBroker()
	first := b.Open("batch-1")
	<-first
	second := b.Open("batch-1")
	<-second

	b.Publish("batch-1", Event{Status: StatusSaving})

	select {
	case ev, ok := <-second:
		require.True(t, ok)
		assert.Equal(t, StatusSaving, ev.Status)
	default:
		t.Fatal("replacement channel should receive events")
	}

	select {
	case _, ok := <-first:
		assert.False(t, ok, "old channel must not receive events after replacement")
	default:
		// old channel open but idle, also fine
	}
}

func TestCloseEndsChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Open("batch-1")
	<-ch

	b.Close("batch-1")

	_, ok := <-ch
	assert.False(t, ok)

	// publishing after close is a no-op
	b.Publish("batch-1", Event{Status: StatusCompleted})
	b.Close("batch-1")
}

func TestCloseAfterDelaysClose(t *testing.T) {
	b := NewBroker()
	ch := b.Open("batch-1")
	<-ch

	b.CloseAfter("batch-1", 10*time.Millisecond)
	b.Publish("batch-1", Event{Status: StatusCompleted})

	ev := <-ch
	assert.Equal(t, StatusCompleted, ev.Status)

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestUnregisterOnlyRemovesOwnChannel(t *testing.T) {
	b := NewBroker()
	stale := b.Open("batch-1")
	<-stale
	current := b.Open("batch-1")
	<-current

	// the stale observer disconnecting must not tear down the replacement
	b.Unregister("batch-1", stale)
	b.Publish("batch-1", Event{Status: StatusProcessing})

	select {
	case ev := <-current:
		assert.Equal(t, StatusProcessing, ev.Status)
	default:
		t.Fatal("current registration should survive a stale unregister")
	}

	b.Unregister("batch-1", current)
	b.Publish("batch-1", Event{Status: StatusSaving})
	select {
	case <-current:
		t.Fatal("unregistered channel should receive nothing")
	default:
	}
}

func TestConcurrentOpenPublishClose(t *testing.T) {
	b := NewBroker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				b.Open("batch-1")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				b.Close("batch-1")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				b.Publish("batch-1", Event{Status: StatusProcessing})
			}
		}()
	}
	wg.Wait()
}

func TestTerminal(t *testing.T) {
	assert.True(t, Event{Status: StatusCompleted}.Terminal())
	assert.True(t, Event{Status: StatusFailed}.Terminal())
	assert.False(t, Event{Status: StatusProcessing}.Terminal())
	assert.False(t, Event{Status: StatusConnected}.Terminal())
}
