package dispatch

import "sync"

// Queue is a blocking FIFO ring that doubles its capacity when full, up to
// maxCapacity. At the ceiling a Push evicts the oldest item.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	size   int
	limit  int
	closed bool

	pushed  int64
	popped  int64
	evicted int64
	grows   int
}

// NewQueue creates a queue with the given starting and maximum capacity.
// A maxCapacity below initial pins the queue at initial.
func NewQueue[T any](initial, maxCapacity int) *Queue[T] {
	if initial < 1 {
		initial = 1
	}
	if maxCapacity < initial {
		maxCapacity = initial
	}
	q := &Queue[T]{
		ring:  make([]T, initial),
		limit: maxCapacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.size == len(q.ring) {
		if len(q.ring) < q.limit {
			q.resizeLocked(min(len(q.ring)*2, q.limit))
		} else {
			q.dropHeadLocked()
			q.evicted++
		}
	}

	q.ring[(q.head+q.size)%len(q.ring)] = item
	q.size++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available. After Close it keeps returning
// queued items and reports false once the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.size == 0 {
		var zero T
		return zero, false
	}
	q.popped++
	return q.dropHeadLocked(), true
}

// TryPop is Pop without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		var zero T
		return zero, false
	}
	q.popped++
	return q.dropHeadLocked(), true
}

// Close stops accepting pushes and wakes blocked readers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// QueueStats is a point-in-time view of a queue.
type QueueStats struct {
	Len      int   `json:"len"`
	Capacity int   `json:"capacity"`
	Pushed   int64 `json:"pushed"`
	Popped   int64 `json:"popped"`
	Evicted  int64 `json:"evicted"`
	Grows    int   `json:"grows"`
}

// Stats returns queue counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.size,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Evicted:  q.evicted,
		Grows:    q.grows,
	}
}

// dropHeadLocked removes and returns the oldest item.
func (q *Queue[T]) dropHeadLocked() T {
	var zero T
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	return item
}

// resizeLocked copies the live items, in order, into a ring of n slots.
func (q *Queue[T]) resizeLocked(n int) {
	next := make([]T, n)
	for i := 0; i < q.size; i++ {
		next[i] = q.ring[(q.head+i)%len(q.ring)]
	}
	q.ring = next
	q.head = 0
	q.grows++
}
