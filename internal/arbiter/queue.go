package arbiter

import "errors"

// QueueCapacity is the number of aircraft one admission queue can hold.
const QueueCapacity = 4

var (
	ErrQueueFull  = errors.New("arbiter: admission queue full")
	ErrQueueEmpty = errors.New("arbiter: admission queue empty")
)

// Queue is a bounded FIFO of waiting identities for one operation kind.
type Queue struct {
	ids   [QueueCapacity]uint8
	head  int
	count int
}

// Enqueue appends id at the tail. Callers check IsFull first; a full queue
// returns ErrQueueFull and is left unchanged.
func (q *Queue) Enqueue(id uint8) error {
	if q.IsFull() {
		return ErrQueueFull
	}
	q.ids[(q.head+q.count)%QueueCapacity] = id
	q.count++
	return nil
}

// PopFront removes and returns the oldest waiter.
func (q *Queue) PopFront() (uint8, error) {
	if q.count == 0 {
		return 0, ErrQueueEmpty
	}
	id := q.ids[q.head]
	q.head = (q.head + 1) % QueueCapacity
	q.count--
	return id, nil
}

// EvictAll drains the queue and returns the waiters oldest first.
func (q *Queue) EvictAll() []uint8 {
	out := q.Items()
	q.head, q.count = 0, 0
	return out
}

// Items returns the waiters oldest first without removing them.
func (q *Queue) Items() []uint8 {
	if q.count == 0 {
		return nil
	}
	out := make([]uint8, 0, q.count)
	for i := 0; i < q.count; i++ {
		out = append(out, q.ids[(q.head+i)%QueueCapacity])
	}
	return out
}

func (q *Queue) Contains(id uint8) bool {
	for i := 0; i < q.count; i++ {
		if q.ids[(q.head+i)%QueueCapacity] == id {
			return true
		}
	}
	return false
}

func (q *Queue) Len() int      { return q.count }
func (q *Queue) IsFull() bool  { return q.count == QueueCapacity }
func (q *Queue) IsEmpty() bool { return q.count == 0 }
