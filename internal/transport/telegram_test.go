package transport

import (
	"io"
	"log/slog"
	"testing"
)

func testTelegram(buffer int) *Telegram {
	return &Telegram{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		events: make(chan Event, buffer),
	}
}

func TestEnqueue_DropsWhenQueueFull(t *testing.T) {
	tg := testTelegram(1)
	tg.enqueue(Event{UserID: 1})
	tg.enqueue(Event{UserID: 2})

	ev := <-tg.Events()
	if ev.UserID != 1 {
		t.Errorf("first event = %d", ev.UserID)
	}
	select {
	case ev := <-tg.Events():
		t.Errorf("overflow event %d was not dropped", ev.UserID)
	default:
	}
}

func TestEnqueue_SafeAfterConsumerStops(t *testing.T) {
	tg := testTelegram(1)

	// A handler goroutine may deliver one last event after the poller was
	// stopped and the consumer has exited. The channel stays open, so this
	// must not panic.
	tg.enqueue(Event{UserID: 1})
	tg.enqueue(Event{UserID: 2})
}
