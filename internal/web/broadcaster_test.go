package web

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("info", "hello")

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Msg != "hello" {
			t.Errorf("msg = %q, want \"hello\"", evt.Msg)
		}
		if evt.Level != "info" {
			t.Errorf("level = %q, want \"info\"", evt.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Broadcast("info", "multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case msg := <-ch:
			var evt StatusEvent
			if err := json.Unmarshal([]byte(msg), &evt); err != nil {
				t.Fatalf("subscriber %d: unmarshal: %v", i, err)
			}
			if evt.Msg != "multi" {
				t.Errorf("subscriber %d: msg = %q, want \"multi\"", i, evt.Msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timeout", i)
		}
	}
}

func TestBroadcaster_LateSubscriberGetsBacklog(t *testing.T) {
	b := NewStatusBroadcaster()
	b.Broadcast("info", "before-subscribe")

	ch, unsub := b.Subscribe()
	defer unsub()

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Msg != "before-subscribe" {
			t.Errorf("msg = %q, want backlog replay", evt.Msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for backlog replay")
	}
}

func TestBroadcaster_BacklogBounded(t *testing.T) {
	b := NewStatusBroadcaster()
	for i := 0; i < backlogSize*2; i++ {
		b.Broadcast("info", "fill")
	}

	ch, unsub := b.Subscribe()
	defer unsub()

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != backlogSize {
				t.Errorf("replayed %d events, want %d", count, backlogSize)
			}
			return
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	// Overrun the subscriber buffer; extra messages must be dropped
	// without blocking or panicking.
	for i := 0; i < backlogSize+200; i++ {
		b.Broadcast("info", "fill")
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count == 0 {
				t.Error("expected some messages to be delivered")
			}
			if count > backlogSize+64 {
				t.Errorf("delivered %d messages, exceeds buffer bound", count)
			}
			return
		}
	}
}

func TestBroadcastWriter(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	if _, err := w.Write([]byte("[FeedGo] [LIVE] Stage: capturing\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Msg != "[FeedGo] [LIVE] Stage: capturing" {
			t.Errorf("msg = %q", evt.Msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}

	// Blank writes are suppressed.
	if _, err := w.Write([]byte("   \n")); err != nil {
		t.Fatalf("Write blank: %v", err)
	}
	select {
	case msg := <-ch:
		t.Errorf("blank write should not broadcast, got %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
