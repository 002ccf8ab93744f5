package gateway

import (
	"fmt"
	"testing"
	"time"
)

func TestOutbox_PushPop(t *testing.T) {
	o := NewOutbox(4)

	if evicted := o.Push([]byte("a")); evicted {
		t.Error("Push on empty outbox evicted")
	}
	o.Push([]byte("b"))

	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2", o.Len())
	}

	frame, ok := o.Pop()
	if !ok || string(frame) != "a" {
		t.Errorf("Pop() = %q, %v; want a, true", frame, ok)
	}
	frame, ok = o.Pop()
	if !ok || string(frame) != "b" {
		t.Errorf("Pop() = %q, %v; want b, true", frame, ok)
	}
}

func TestOutbox_OverflowDropsOldest(t *testing.T) {
	o := NewOutbox(3)

	for i := 0; i < 3; i++ {
		if evicted := o.Push([]byte{byte('a' + i)}); evicted {
			t.Errorf("Push %d evicted below capacity", i)
		}
	}

	// Fourth push evicts "a", the oldest.
	if evicted := o.Push([]byte("d")); !evicted {
		t.Error("Push at capacity did not evict")
	}

	if o.Len() != 3 {
		t.Errorf("Len() = %d after overflow, want 3", o.Len())
	}
	if o.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", o.Dropped())
	}

	want := []string{"b", "c", "d"}
	for i, w := range want {
		frame, ok := o.Pop()
		if !ok || string(frame) != w {
			t.Errorf("Pop %d = %q, %v; want %q", i, frame, ok, w)
		}
	}
}

func TestOutbox_OrderPreservedUnderChurn(t *testing.T) {
	o := NewOutbox(8)

	// Interleave pushes and pops across the ring boundary.
	seq := 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 6; i++ {
			o.Push([]byte(fmt.Sprintf("%d", seq)))
			seq++
		}
		last := ""
		for i := 0; i < 6; i++ {
			frame, ok := o.Pop()
			if !ok {
				t.Fatal("Pop on non-empty outbox failed")
			}
			if last != "" && string(frame) <= last && len(frame) == len(last) {
				t.Errorf("out of order: %q after %q", frame, last)
			}
			last = string(frame)
		}
	}
}

func TestOutbox_CloseDrainsThenStops(t *testing.T) {
	o := NewOutbox(4)
	o.Push([]byte("a"))
	o.Close()

	// Pending frames remain poppable after close.
	frame, ok := o.Pop()
	if !ok || string(frame) != "a" {
		t.Errorf("Pop() = %q, %v; want a, true", frame, ok)
	}

	if _, ok := o.Pop(); ok {
		t.Error("Pop on closed drained outbox returned ok")
	}

	// Push after close is a no-op.
	if evicted := o.Push([]byte("b")); evicted {
		t.Error("Push after close evicted")
	}
	if o.Len() != 0 {
		t.Errorf("Len() = %d after push-on-closed, want 0", o.Len())
	}
}

func TestOutbox_CloseWakesBlockedPop(t *testing.T) {
	o := NewOutbox(4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := o.Pop(); ok {
			t.Error("blocked Pop returned ok after close")
		}
	}()

	time.Sleep(10 * time.Millisecond)
	o.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Close")
	}
}
