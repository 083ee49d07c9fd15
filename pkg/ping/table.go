package ping

import (
	"container/heap"
	"net/netip"
	"time"
)

// pendingKey identifies one outstanding echo: the resolved target
// address plus the sequence number it was sent with.
type pendingKey struct {
	addr netip.Addr
	seq  uint16
}

// outstanding is a ping in flight. It transitions exactly once, to
// resolved (matching reply arrived) or expired (deadline or removal).
type outstanding struct {
	target *Target
	seq    uint16
	sentAt time.Time
	done   bool
}

// sessionTable tracks outstanding pings: a map keyed (addr, seq) for
// O(1) resolve, plus a send-time min-heap for expiry sweeps. Resolved
// entries stay in the heap flagged done and are skipped when popped.
type sessionTable struct {
	byKey map[pendingKey]*outstanding
	queue sendTimeHeap
}

func newSessionTable() *sessionTable {
	return &sessionTable{byKey: make(map[pendingKey]*outstanding)}
}

func (t *sessionTable) len() int { return len(t.byKey) }

// insert registers a newly transmitted echo. The (target, seq) pair
// is unique by construction: sequence numbers come from a session
// counter that cannot revisit a value while its entry is pending.
func (t *sessionTable) insert(target *Target, seq uint16, sentAt time.Time) {
	o := &outstanding{target: target, seq: seq, sentAt: sentAt}
	t.byKey[pendingKey{addr: target.Addr, seq: seq}] = o
	heap.Push(&t.queue, o)
}

// resolve consumes a pending entry matched by a reply and returns the
// elapsed time since transmission. Returns false for entries that are
// unknown or already consumed (duplicate replies).
func (t *sessionTable) resolve(addr netip.Addr, seq uint16, now time.Time) (*Target, time.Duration, bool) {
	key := pendingKey{addr: addr, seq: seq}
	o, ok := t.byKey[key]
	if !ok || o.done {
		return nil, 0, false
	}
	o.done = true
	delete(t.byKey, key)
	return o.target, now.Sub(o.sentAt), true
}

// expireAll expires every remaining entry in send-time order, used at
// round end and on cooperative cancellation.
func (t *sessionTable) expireAll() []*outstanding {
	var expired []*outstanding
	for t.queue.Len() > 0 {
		o := t.queue[0]
		heap.Pop(&t.queue)
		if o.done {
			continue
		}
		o.done = true
		delete(t.byKey, pendingKey{addr: o.target.Addr, seq: o.seq})
		expired = append(expired, o)
	}
	return expired
}

// drop discards all pending entries for one target, used when the
// target is removed from the session mid-flight.
func (t *sessionTable) drop(addr netip.Addr) {
	for key, o := range t.byKey {
		if key.addr == addr {
			o.done = true
			delete(t.byKey, key)
		}
	}
}

// sendTimeHeap orders outstanding pings by transmission time.
type sendTimeHeap []*outstanding

func (h sendTimeHeap) Len() int           { return len(h) }
func (h sendTimeHeap) Less(i, j int) bool { return h[i].sentAt.Before(h[j].sentAt) }
func (h sendTimeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *sendTimeHeap) Push(x any)        { *h = append(*h, x.(*outstanding)) }
func (h *sendTimeHeap) Pop() any {
	old := *h
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return o
}
