package bus

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New[int]()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	if n := b.Publish(7); n != 2 {
		t.Fatalf("Publish delivered to %d subscribers, want 2", n)
	}
	if got := <-a; got != 7 {
		t.Errorf("subscriber a got %d, want 7", got)
	}
	if got := <-c; got != 7 {
		t.Errorf("subscriber c got %d, want 7", got)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New[string]()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish("first")
	if n := b.Publish("second"); n != 0 {
		t.Fatalf("Publish to a full subscriber delivered %d, want 0", n)
	}
	if got := <-ch; got != "first" {
		t.Errorf("got %q, want %q", got, "first")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int]()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after unsubscribe, want 0", b.Len())
	}
}

func TestNilAndClosedBus(t *testing.T) {
	var nilBus *Bus[int]
	if n := nilBus.Publish(1); n != 0 {
		t.Errorf("nil bus Publish = %d, want 0", n)
	}

	b := New[int]()
	first, _ := b.Subscribe(1)
	b.Close()
	b.Close()
	if _, ok := <-first; ok {
		t.Error("existing subscriber channel should be closed by Close")
	}
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus should return a closed channel")
	}
}
