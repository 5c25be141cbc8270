// Package queue implements the two in-memory admission queues:
// pending, drained by the allocator, and moderatorHeld, re-scanned
// on a moderate_jobs:resume event. Both are FIFOs over execution IDs only
// — the authoritative record lives in the store.
package queue

import (
	"container/list"

	"github.com/google/uuid"
)

// Queue is an ordered, non-durable FIFO of execution IDs supporting
// front-insertion for moderatorHeld -> pending promotion.
type Queue struct {
	items *list.List
	index map[uuid.UUID]*list.Element
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{
		items: list.New(),
		index: make(map[uuid.UUID]*list.Element),
	}
}

// Enqueue appends id to the tail. A no-op if id is already present.
func (q *Queue) Enqueue(id uuid.UUID) {
	if _, ok := q.index[id]; ok {
		return
	}
	q.index[id] = q.items.PushBack(id)
}

// EnqueueFront inserts id at the head, used for moderatorHeld -> pending
// promotion so released executions jump ahead of never-seen ones.
func (q *Queue) EnqueueFront(id uuid.UUID) {
	if _, ok := q.index[id]; ok {
		return
	}
	q.index[id] = q.items.PushFront(id)
}

// Dequeue pops the front element. ok is false on an empty queue.
func (q *Queue) Dequeue() (id uuid.UUID, ok bool) {
	front := q.items.Front()
	if front == nil {
		return uuid.UUID{}, false
	}
	q.items.Remove(front)
	id = front.Value.(uuid.UUID)
	delete(q.index, id)
	return id, true
}

// Remove deletes id from the queue wherever it sits. A no-op if absent.
func (q *Queue) Remove(id uuid.UUID) {
	el, ok := q.index[id]
	if !ok {
		return
	}
	q.items.Remove(el)
	delete(q.index, id)
}

// Size returns the number of queued executions.
func (q *Queue) Size() int {
	return q.items.Len()
}

// Contains reports whether id currently sits in the queue.
func (q *Queue) Contains(id uuid.UUID) bool {
	_, ok := q.index[id]
	return ok
}

// Each iterates front-to-back, stopping early if fn returns false. It
// reads each element's successor before calling fn, so fn may Remove the
// element it was given; any other change to this queue from inside fn can
// end the iteration early or skip elements.
func (q *Queue) Each(fn func(id uuid.UUID) bool) {
	for el := q.items.Front(); el != nil; {
		next := el.Next()
		if !fn(el.Value.(uuid.UUID)) {
			return
		}
		el = next
	}
}
