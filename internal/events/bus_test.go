package events

import (
	"testing"
)

func TestBus_PublishOrder(t *testing.T) {
	b := NewBus()

	var got []string
	b.SubscribeAll(func(e Event) { got = append(got, "all:"+string(e.Type)) })
	b.Subscribe(func(e Event) { got = append(got, "show:"+e.ItemID) }, EventSubtitleShow)

	b.Publish(Event{Type: EventDialogueStarted, ItemID: "a"})
	b.Publish(Event{Type: EventSubtitleShow, ItemID: "a"})

	want := []string{
		"all:dialogue.started",
		"all:subtitle.show",
		"show:a",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBus_FillsTime(t *testing.T) {
	b := NewBus()

	var seen Event
	b.SubscribeAll(func(e Event) { seen = e })
	b.Publish(Event{Type: EventWarning})

	if seen.Time.IsZero() {
		t.Error("Publish should stamp the event time")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	count := 0
	cancel := b.Subscribe(func(Event) { count++ }, EventDialogueFinished)
	b.Publish(Event{Type: EventDialogueFinished})
	cancel()
	b.Publish(Event{Type: EventDialogueFinished})

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}

	// second cancel is harmless
	cancel()
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	b := NewBus()

	calls := 0
	b.SubscribeAll(func(Event) {
		calls++
		b.SubscribeAll(func(Event) { calls++ })
	})

	b.Publish(Event{Type: EventDialogueQueued})
	if calls != 1 {
		t.Errorf("handler added during publish should not see the same event, calls = %d", calls)
	}
}

func TestBus_Clear(t *testing.T) {
	b := NewBus()

	called := false
	b.SubscribeAll(func(Event) { called = true })
	b.Clear()
	b.Publish(Event{Type: EventSubtitleHide})

	if called {
		t.Error("handler called after Clear")
	}
}

func TestChanSink_DropsWhenFull(t *testing.T) {
	sink := NewChanSink(2)
	b := NewBus()
	b.SubscribeAll(sink.Handle)

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: EventSubtitleUpdate})
	}

	if n := len(sink.C()); n != 2 {
		t.Errorf("buffered %d events, want 2", n)
	}
	if d := sink.Dropped(); d != 3 {
		t.Errorf("dropped %d events, want 3", d)
	}
}
