package resolver

import "github.com/quantmind-br/upip/internal/core"

// Queue is a FIFO of package specs. Entries may be pushed while the queue
// is being drained; they are served after everything already queued.
// Duplicates are kept.
type Queue struct {
	items []core.PackageSpec
	head  int
}

// NewQueue creates a queue holding specs in order
func NewQueue(specs ...core.PackageSpec) *Queue {
	q := &Queue{}
	q.Push(specs...)
	return q
}

// Push appends specs to the tail
func (q *Queue) Push(specs ...core.PackageSpec) {
	q.items = append(q.items, specs...)
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *Queue) Pop() (spec core.PackageSpec, ok bool) {
	if q.head >= len(q.items) {
		return "", false
	}
	spec = q.items[q.head]
	q.items[q.head] = ""
	q.head++
	if q.head == len(q.items) {
		q.items, q.head = q.items[:0], 0
	}
	return spec, true
}

// Len returns the number of queued specs
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Snapshot returns a copy of the queued specs, head first
func (q *Queue) Snapshot() []core.PackageSpec {
	return append([]core.PackageSpec(nil), q.items[q.head:]...)
}
