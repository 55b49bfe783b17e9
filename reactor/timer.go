package reactor

import (
	"container/heap"
	"time"
)

// Timer is an opaque handle to a scheduled one-shot callback, returned by
// TimerWheel.Start and accepted by TimerWheel.Cancel.
type Timer struct {
	deadline time.Time
	cb       func(data interface{})
	data     interface{}
	seq      uint64
	index    int // position in the heap, maintained by container/heap
	canceled bool
}

// timerHeap orders *Timer by deadline, breaking ties by insertion sequence
// so timers scheduled for the same instant fire in scheduling order
// (spec.md §4.1: "in insertion order among ready timers").
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerWheel is an ordered set of one-shot timers keyed by wall-clock
// deadline (C1 of the spec). It is not safe for concurrent use; all
// calls happen on the reactor goroutine.
type TimerWheel struct {
	heap    timerHeap
	nextSeq uint64
	now     func() time.Time
}

// NewTimerWheel constructs an empty timer wheel using time.Now as its
// clock source.
func NewTimerWheel() *TimerWheel {
	return &TimerWheel{now: time.Now}
}

// Start schedules cb(data) to fire at now+delay and returns a handle that
// can be passed to Cancel.
func (w *TimerWheel) Start(delay time.Duration, cb func(data interface{}), data interface{}) *Timer {
	t := &Timer{
		deadline: w.now().Add(delay),
		cb:       cb,
		data:     data,
		seq:      w.nextSeq,
	}
	w.nextSeq++
	heap.Push(&w.heap, t)
	return t
}

// Cancel removes t from the wheel. The callback is never invoked. Calling
// Cancel on an already-fired or already-canceled timer is a safe no-op,
// since both leave t.index == -1.
func (w *TimerWheel) Cancel(t *Timer) {
	if t == nil || t.canceled || t.index < 0 {
		return
	}
	t.canceled = true
	heap.Remove(&w.heap, t.index)
}

// MinDeadline returns the earliest pending deadline, or the zero Time if
// no timers are pending — the sentinel spec.md §4.1 calls "0".
func (w *TimerWheel) MinDeadline() time.Time {
	if len(w.heap) == 0 {
		return time.Time{}
	}
	return w.heap[0].deadline
}

// Tick fires every timer whose deadline has passed as of now, in
// ascending deadline (ties broken by scheduling order), removing each
// before invoking its callback so a callback that cancels itself or
// starts new timers observes consistent state.
func (w *TimerWheel) Tick(now time.Time) {
	for len(w.heap) > 0 && !w.heap[0].deadline.After(now) {
		t := heap.Pop(&w.heap).(*Timer)
		t.canceled = true
		t.cb(t.data)
	}
}
