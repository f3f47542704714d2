package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending pendingHeap
	seq     int
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, cb func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	p := &pendingCall{at: f.now.Add(d), fn: cb, seq: f.seq}
	heap.Push(&f.pending, p)
	return &fakeTimer{clock: f, call: p}
}

// Advance moves the clock forward by d, firing any callbacks whose
// deadline has been reached, in deadline order (ties broken by
// scheduling order).
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	var due []*pendingCall
	for f.pending.Len() > 0 && !f.pending[0].at.After(target) {
		p := heap.Pop(&f.pending).(*pendingCall)
		if p.cancelled {
			continue
		}
		due = append(due, p)
	}
	f.now = target
	f.mu.Unlock()

	for _, p := range due {
		p.fn()
	}
}

type pendingCall struct {
	at        time.Time
	fn        func()
	seq       int
	cancelled bool
}

type pendingHeap []*pendingCall

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)        { *h = append(*h, x.(*pendingCall)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type fakeTimer struct {
	clock *Fake
	call  *pendingCall
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	already := t.call.cancelled
	t.call.cancelled = true
	return !already
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	active := !t.call.cancelled
	t.call.cancelled = true
	t.clock.seq++
	p := &pendingCall{at: t.clock.now.Add(d), fn: t.call.fn, seq: t.clock.seq}
	heap.Push(&t.clock.pending, p)
	t.call = p
	t.clock.mu.Unlock()
	return active
}
