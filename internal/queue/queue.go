package queue

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

// Limits holds the maximum number of concurrently active items per tier.
type Limits [ttypes.NumTiers]int

// DefaultLimits returns the stock admission limits: one critical line at a
// time, two high, four normal and eight low.
func DefaultLimits() Limits {
	return Limits{1, 2, 4, 8}
}

// PriorityQueue holds four FIFO lanes, one per tier, together with the
// active set used for admission control. All methods are safe for
// concurrent use and none of them block.
type PriorityQueue struct {
	lanes [ttypes.NumTiers][]ttypes.DialogueItem

	// Admission state; active and activeCount are only ever changed together
	active      map[string]ttypes.DialogueItem
	activeCount [ttypes.NumTiers]int
	limits      Limits

	mu     sync.RWMutex
	stats  Stats
	logger *log.Logger
}

// Stats tracks queue performance metrics
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalRemoved  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates a queue with the given admission limits. A non-positive
// limit is replaced by the default for that tier.
func New(limits Limits) *PriorityQueue {
	def := DefaultLimits()
	for i := range limits {
		if limits[i] <= 0 {
			limits[i] = def[i]
		}
	}

	return &PriorityQueue{
		active: make(map[string]ttypes.DialogueItem),
		limits: limits,
		logger: log.Default(),
	}
}

// SetLogger replaces the logger used for warnings.
func (q *PriorityQueue) SetLogger(l *log.Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l != nil {
		q.logger = l
	}
}

// Enqueue appends the item to the tail of the lane matching its priority.
func (q *PriorityQueue) Enqueue(item ttypes.DialogueItem) {
	item.Normalize()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.lanes[item.Priority] = append(q.lanes[item.Priority], item)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	size := q.sizeLocked()
	if size > q.stats.PeakSize {
		q.stats.PeakSize = size
	}
	q.stats.CurrentSize = size
}

// Dequeue pops the head of the highest-priority lane that is non-empty and
// has admission headroom. It returns false when nothing is eligible.
func (q *PriorityQueue) Dequeue() (ttypes.DialogueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for tier := range q.lanes {
		if len(q.lanes[tier]) == 0 || !q.canAdmitLocked(tier) {
			continue
		}

		item := q.lanes[tier][0]
		q.lanes[tier][0] = ttypes.DialogueItem{} // drop payload reference
		q.lanes[tier] = q.lanes[tier][1:]

		q.stats.TotalDequeued++
		q.stats.LastDequeue = time.Now()
		q.stats.CurrentSize = q.sizeLocked()
		return item, true
	}

	return ttypes.DialogueItem{}, false
}

// DequeueWhere pops the first lane head, scanning lanes 0->3, for which fn
// returns true. Admission limits are not checked; fn decides. Only lane
// heads are considered so FIFO order within a lane holds.
func (q *PriorityQueue) DequeueWhere(fn func(ttypes.DialogueItem) bool) (ttypes.DialogueItem, bool) {
	q.mu.Lock()
	var heads [ttypes.NumTiers]*ttypes.DialogueItem
	for tier := range q.lanes {
		if len(q.lanes[tier]) > 0 {
			head := q.lanes[tier][0]
			heads[tier] = &head
		}
	}
	q.mu.Unlock()

	// fn runs without the lock so it may call back into the queue
	for tier, head := range heads {
		if head == nil || !fn(*head) {
			continue
		}

		q.mu.Lock()
		if len(q.lanes[tier]) == 0 || q.lanes[tier][0].ID != head.ID {
			q.mu.Unlock()
			continue
		}
		item := q.lanes[tier][0]
		q.lanes[tier][0] = ttypes.DialogueItem{}
		q.lanes[tier] = q.lanes[tier][1:]
		q.stats.TotalDequeued++
		q.stats.LastDequeue = time.Now()
		q.stats.CurrentSize = q.sizeLocked()
		q.mu.Unlock()
		return item, true
	}

	return ttypes.DialogueItem{}, false
}

// CanAdmit reports whether another item of the given tier may become active.
func (q *PriorityQueue) CanAdmit(tier ttypes.Tier) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.canAdmitLocked(int(ttypes.ClampTier(int(tier))))
}

func (q *PriorityQueue) canAdmitLocked(tier int) bool {
	return q.activeCount[tier] < q.limits[tier]
}

// MarkActive records the item as active and bumps its tier counter.
// Marking an id that is already active is a no-op and returns false.
func (q *PriorityQueue) MarkActive(id string, item ttypes.DialogueItem) bool {
	item.Normalize()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.active[id]; ok {
		q.logger.Warn("Dialogue already active", "id", id)
		return false
	}

	q.active[id] = item
	q.activeCount[item.Priority]++
	return true
}

// MarkInactive removes the item from the active set and releases its
// admission slot. Unknown ids are a no-op and return false.
func (q *PriorityQueue) MarkInactive(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.active[id]
	if !ok {
		q.logger.Warn("Dialogue not active", "id", id)
		return false
	}

	delete(q.active, id)
	q.activeCount[item.Priority]--
	if q.activeCount[item.Priority] < 0 {
		q.activeCount[item.Priority] = 0
	}
	return true
}

// IsActive reports whether the id is in the active set.
func (q *PriorityQueue) IsActive(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, ok := q.active[id]
	return ok
}

// ActiveItem returns the active item with the given id.
func (q *PriorityQueue) ActiveItem(id string) (ttypes.DialogueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.active[id]
	return item, ok
}

// ActiveCount returns the number of active items in a tier.
func (q *PriorityQueue) ActiveCount(tier ttypes.Tier) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.activeCount[ttypes.ClampTier(int(tier))]
}

// Contains reports whether an item with the given id is waiting in a lane.
func (q *PriorityQueue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for tier := range q.lanes {
		for _, item := range q.lanes[tier] {
			if item.ID == id {
				return true
			}
		}
	}
	return false
}

// Remove takes a queued item out of its lane.
func (q *PriorityQueue) Remove(id string) (ttypes.DialogueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for tier := range q.lanes {
		for i, item := range q.lanes[tier] {
			if item.ID != id {
				continue
			}
			q.lanes[tier] = append(q.lanes[tier][:i], q.lanes[tier][i+1:]...)
			q.stats.TotalRemoved++
			q.stats.CurrentSize = q.sizeLocked()
			return item, true
		}
	}
	return ttypes.DialogueItem{}, false
}

// RemoveSpeaker takes every queued item of a speaker out of the lanes,
// preserving lane order in the result.
func (q *PriorityQueue) RemoveSpeaker(speakerID string) []ttypes.DialogueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []ttypes.DialogueItem
	for tier := range q.lanes {
		kept := q.lanes[tier][:0]
		for _, item := range q.lanes[tier] {
			if item.SpeakerID == speakerID {
				removed = append(removed, item)
				continue
			}
			kept = append(kept, item)
		}
		q.lanes[tier] = kept
	}

	q.stats.TotalRemoved += int64(len(removed))
	q.stats.CurrentSize = q.sizeLocked()
	return removed
}

// Len returns the number of queued items across all lanes.
func (q *PriorityQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.sizeLocked()
}

func (q *PriorityQueue) sizeLocked() int {
	n := 0
	for tier := range q.lanes {
		n += len(q.lanes[tier])
	}
	return n
}

// ClearAll empties every lane and the active set and resets the counters.
// Used at session boundaries.
func (q *PriorityQueue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for tier := range q.lanes {
		q.lanes[tier] = nil
	}
	q.active = make(map[string]ttypes.DialogueItem)
	q.activeCount = [ttypes.NumTiers]int{}
	q.stats.CurrentSize = 0
}

// Status returns per-lane queue lengths and admission counters.
func (q *PriorityQueue) Status() ttypes.QueueStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var s ttypes.QueueStatus
	for tier := range q.lanes {
		s.Queued[tier] = len(q.lanes[tier])
		s.ActiveByTier[tier] = q.activeCount[tier]
		s.TotalActive += q.activeCount[tier]
	}
	return s
}

// Limits returns the configured admission limits.
func (q *PriorityQueue) Limits() Limits {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.limits
}

// GetStats returns current queue statistics.
func (q *PriorityQueue) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := q.stats
	stats.CurrentSize = q.sizeLocked()
	return stats
}
