package queue

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

func newTestQueue(limits Limits) *PriorityQueue {
	q := New(limits)
	q.SetLogger(log.New(io.Discard))
	return q
}

func item(id, speaker string, tier ttypes.Tier) ttypes.DialogueItem {
	return ttypes.DialogueItem{ID: id, SpeakerID: speaker, Text: "line " + id, Priority: tier}
}

func TestPriorityQueue_BasicOperations(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	if size := q.Len(); size != 0 {
		t.Errorf("Expected empty queue, got size %d", size)
	}

	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue on empty queue should return false")
	}

	q.Enqueue(item("a", "npc1", ttypes.TierNormal))
	if size := q.Len(); size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}
	if !q.Contains("a") {
		t.Error("Contains returned false for queued item")
	}

	got, ok := q.Dequeue()
	if !ok {
		t.Fatal("Dequeue failed")
	}
	if got.ID != "a" {
		t.Errorf("Dequeued wrong item: %v", got.ID)
	}
	if size := q.Len(); size != 0 {
		t.Errorf("Expected empty queue after dequeue, got size %d", size)
	}
}

func TestPriorityQueue_FIFOWithinTier(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	for _, id := range []string{"A", "B", "C"} {
		q.Enqueue(item(id, "speaker-"+id, ttypes.TierLow))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue failed, expected %s", want)
		}
		if got.ID != want {
			t.Errorf("Dequeue order: got %s, want %s", got.ID, want)
		}
	}
}

func TestPriorityQueue_TierOrderDominatesArrival(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	q.Enqueue(item("low", "a", ttypes.TierLow))
	q.Enqueue(item("normal", "b", ttypes.TierNormal))
	q.Enqueue(item("critical", "c", ttypes.TierCritical))
	q.Enqueue(item("high", "d", ttypes.TierHigh))

	for _, want := range []string{"critical", "high", "normal", "low"} {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue failed, expected %s", want)
		}
		if got.ID != want {
			t.Errorf("Dequeue order: got %s, want %s", got.ID, want)
		}
	}
}

func TestPriorityQueue_ClampsPriority(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	q.Enqueue(ttypes.DialogueItem{ID: "neg", SpeakerID: "a", Priority: -5})
	q.Enqueue(ttypes.DialogueItem{ID: "big", SpeakerID: "b", Priority: 42})

	status := q.Status()
	if status.Queued[ttypes.TierCritical] != 1 {
		t.Errorf("Negative priority should land in tier 0, status %+v", status.Queued)
	}
	if status.Queued[ttypes.TierLow] != 1 {
		t.Errorf("Large priority should land in tier 3, status %+v", status.Queued)
	}

	got, _ := q.Dequeue()
	if got.Priority != ttypes.TierCritical {
		t.Errorf("Stored priority not clamped: %d", got.Priority)
	}
}

func TestPriorityQueue_AdmissionLimit(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	q.Enqueue(item("first", "npc1", ttypes.TierCritical))
	q.Enqueue(item("second", "npc2", ttypes.TierCritical))

	first, ok := q.Dequeue()
	if !ok || first.ID != "first" {
		t.Fatalf("Expected first, got %v (%v)", first.ID, ok)
	}
	q.MarkActive(first.ID, first)

	if q.CanAdmit(ttypes.TierCritical) {
		t.Error("Tier 0 should be saturated with limit 1")
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Second tier-0 item should stay queued while the first is active")
	}
	if q.Len() != 1 {
		t.Errorf("Expected second item to remain queued, size %d", q.Len())
	}

	q.MarkInactive(first.ID)

	second, ok := q.Dequeue()
	if !ok || second.ID != "second" {
		t.Errorf("Expected second after first finished, got %v (%v)", second.ID, ok)
	}
}

func TestPriorityQueue_SaturatedTierDoesNotBlockOthers(t *testing.T) {
	q := newTestQueue(DefaultLimits())

	q.MarkActive("busy", item("busy", "x", ttypes.TierCritical))
	q.Enqueue(item("blocked", "a", ttypes.TierCritical))
	q.Enqueue(item("free", "b", ttypes.TierLow))

	got, ok := q.Dequeue()
	if !ok || got.ID != "free" {
		t.Errorf("Expected lower tier to be served past a saturated tier, got %v", got.ID)
	}
}

func TestPriorityQueue_MarkActiveDuplicate(t *testing.T) {
	q := newTestQueue(DefaultLimits())
	it := item("a", "npc1", ttypes.TierNormal)

	if !q.MarkActive("a", it) {
		t.Fatal("First MarkActive should succeed")
	}
	if q.MarkActive("a", it) {
		t.Error("Duplicate MarkActive should be a no-op")
	}
	if n := q.ActiveCount(ttypes.TierNormal); n != 1 {
		t.Errorf("Active count after duplicate MarkActive = %d, want 1", n)
	}
}

func TestPriorityQueue_MarkInactiveIdempotent(t *testing.T) {
	q := newTestQueue(DefaultLimits())
	q.MarkActive("a", item("a", "npc1", ttypes.TierHigh))
	q.MarkActive("b", item("b", "npc2", ttypes.TierHigh))

	if !q.MarkInactive("a") {
		t.Fatal("First MarkInactive should succeed")
	}
	after := q.ActiveCount(ttypes.TierHigh)

	if q.MarkInactive("a") {
		t.Error("Second MarkInactive should be a no-op")
	}
	if got := q.ActiveCount(ttypes.TierHigh); got != after {
		t.Errorf("Active count changed on second MarkInactive: %d -> %d", after, got)
	}
	if after != 1 {
		t.Errorf("Active count = %d, want 1", after)
	}

	if q.MarkInactive("never-seen") {
		t.Error("MarkInactive for unknown id should return false")
	}
}

func TestPriorityQueue_RemoveAndRemoveSpeaker(t *testing.T) {
	q := newTestQueue(DefaultLimits())
	q.Enqueue(item("a1", "alice", ttypes.TierNormal))
	q.Enqueue(item("b1", "bob", ttypes.TierNormal))
	q.Enqueue(item("a2", "alice", ttypes.TierLow))

	if _, ok := q.Remove("b1"); !ok {
		t.Error("Remove should find queued item")
	}
	if _, ok := q.Remove("b1"); ok {
		t.Error("Remove of already removed item should fail")
	}

	removed := q.RemoveSpeaker("alice")
	if len(removed) != 2 {
		t.Fatalf("RemoveSpeaker removed %d items, want 2", len(removed))
	}
	if removed[0].ID != "a1" || removed[1].ID != "a2" {
		t.Errorf("RemoveSpeaker order = %s,%s", removed[0].ID, removed[1].ID)
	}
	if q.Len() != 0 {
		t.Errorf("Queue should be empty, size %d", q.Len())
	}
}

func TestPriorityQueue_ClearAll(t *testing.T) {
	q := newTestQueue(DefaultLimits())
	q.Enqueue(item("a", "x", ttypes.TierHigh))
	q.MarkActive("b", item("b", "y", ttypes.TierHigh))

	q.ClearAll()

	status := q.Status()
	if status.TotalQueued() != 0 || status.TotalActive != 0 {
		t.Errorf("ClearAll left state behind: %+v", status)
	}
	if q.IsActive("b") {
		t.Error("Active item survived ClearAll")
	}
	if !q.CanAdmit(ttypes.TierHigh) {
		t.Error("Counters not reset by ClearAll")
	}
}

func TestPriorityQueue_Status(t *testing.T) {
	q := newTestQueue(Limits{0, 0, 0, 0})

	if q.Limits() != DefaultLimits() {
		t.Errorf("Non-positive limits should fall back to defaults, got %v", q.Limits())
	}

	q.Enqueue(item("a", "x", ttypes.TierNormal))
	q.Enqueue(item("b", "y", ttypes.TierNormal))
	q.MarkActive("c", item("c", "z", ttypes.TierLow))

	s := q.Status()
	if s.Queued[ttypes.TierNormal] != 2 {
		t.Errorf("Queued[normal] = %d, want 2", s.Queued[ttypes.TierNormal])
	}
	if s.TotalActive != 1 || s.ActiveByTier[ttypes.TierLow] != 1 {
		t.Errorf("Active counters wrong: %+v", s)
	}

	stats := q.GetStats()
	if stats.TotalEnqueued != 2 || stats.PeakSize != 2 {
		t.Errorf("Stats wrong: %+v", stats)
	}
}

func TestPriorityQueue_ConcurrentAccess(t *testing.T) {
	q := newTestQueue(Limits{100, 100, 100, 100})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				q.Enqueue(item(id, id, ttypes.Tier(i%4)))
			}
		}(w)
	}
	wg.Wait()

	if q.Len() != 200 {
		t.Fatalf("Expected 200 queued items, got %d", q.Len())
	}

	seen := 0
	for {
		it, ok := q.Dequeue()
		if !ok {
			break
		}
		q.MarkActive(it.ID, it)
		q.MarkInactive(it.ID)
		seen++
	}
	if seen != 200 {
		t.Errorf("Dequeued %d items, want 200", seen)
	}
}

func TestPriorityQueue_DequeueWhere(t *testing.T) {
	q := newTestQueue(DefaultLimits())
	q.MarkActive("busy", item("busy", "x", ttypes.TierCritical))
	q.Enqueue(item("c1", "x", ttypes.TierCritical))
	q.Enqueue(item("c2", "y", ttypes.TierCritical))

	if _, ok := q.Dequeue(); ok {
		t.Fatal("Saturated tier should not dequeue")
	}

	// only lane heads are offered
	got, ok := q.DequeueWhere(func(it ttypes.DialogueItem) bool { return it.ID == "c2" })
	if ok {
		t.Errorf("DequeueWhere skipped the lane head and returned %s", got.ID)
	}

	got, ok = q.DequeueWhere(func(it ttypes.DialogueItem) bool { return it.SpeakerID == "x" })
	if !ok || got.ID != "c1" {
		t.Errorf("DequeueWhere = %v, %v; want c1", got.ID, ok)
	}
	if q.Len() != 1 {
		t.Errorf("Expected one item left, got %d", q.Len())
	}
}
