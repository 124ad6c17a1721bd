package window

import "github.com/torosent/fluvial/internal/record"

// ring is a fixed-capacity FIFO of records. Push refuses to grow past the
// capacity, so the buffer can never hold more than one full window.
type ring struct {
	items []record.Record
	head  int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{items: make([]record.Record, capacity)}
}

func (r *ring) Len() int { return r.size }

func (r *ring) Cap() int { return len(r.items) }

// Push appends rec at the back. It reports false when the ring is full.
func (r *ring) Push(rec record.Record) bool {
	if r.size == len(r.items) {
		return false
	}
	r.items[(r.head+r.size)%len(r.items)] = rec
	r.size++
	return true
}

// At returns the record at position i counted from the oldest.
func (r *ring) At(i int) (record.Record, bool) {
	if i < 0 || i >= r.size {
		return record.Record{}, false
	}
	return r.items[(r.head+i)%len(r.items)], true
}

// PopFront evicts the oldest record.
func (r *ring) PopFront() (record.Record, bool) {
	if r.size == 0 {
		return record.Record{}, false
	}
	rec := r.items[r.head]
	r.items[r.head] = record.Record{}
	r.head = (r.head + 1) % len(r.items)
	r.size--
	return rec, true
}
