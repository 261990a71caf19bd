package scheduler

import (
	"container/heap"

	"github.com/google/uuid"
)

// queueItem is one entry in the task min-heap.
type queueItem struct {
	task *Task

	// seq is a monotonically increasing insertion counter. It makes
	// ordering deterministic for identical timestamps and identifies the
	// most recently queued task for eviction.
	seq uint64

	// heapIdx is the item's current position in the heap slice.
	// Maintained by taskHeap.Swap so Cancel can do O(log N) removal.
	heapIdx int
}

// taskHeap orders items by priority ascending, ties broken by
// (scheduledAt ?? createdAt) ascending, then by insertion order.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i].task, h[j].task
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	at, bt := a.orderTime(), b.orderTime()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*queueItem)
	it.heapIdx = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // allow GC
	it.heapIdx = -1
	*h = old[:n-1]
	return it
}

// taskQueue is the scheduler's bounded priority queue. It is not safe for
// concurrent use; the scheduler serializes access.
type taskQueue struct {
	heap    taskHeap
	byID    map[uuid.UUID]*queueItem
	nextSeq uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{byID: make(map[uuid.UUID]*queueItem)}
}

func (q *taskQueue) len() int { return len(q.heap) }

// push inserts a task in priority order.
func (q *taskQueue) push(task *Task) {
	it := &queueItem{task: task, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.heap, it)
	q.byID[task.ID] = it
}

// peek returns the queue head without removing it, or nil when empty.
func (q *taskQueue) peek() *Task {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0].task
}

// pop removes and returns the queue head, or nil when empty.
func (q *taskQueue) pop() *Task {
	if len(q.heap) == 0 {
		return nil
	}
	it := heap.Pop(&q.heap).(*queueItem)
	delete(q.byID, it.task.ID)
	return it.task
}

// remove deletes the task with the given id, reporting whether it was queued.
func (q *taskQueue) remove(id uuid.UUID) (*Task, bool) {
	it, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	heap.Remove(&q.heap, it.heapIdx)
	delete(q.byID, id)
	return it.task, true
}

// evictForInsert removes and returns the task that should make room for a
// new submission: the most recently queued BACKGROUND task if one exists,
// otherwise the queue tail (lowest priority, latest tie-break).
func (q *taskQueue) evictForInsert() *Task {
	if len(q.heap) == 0 {
		return nil
	}

	victim := q.heap[0]
	var newestBackground *queueItem
	for _, it := range q.heap {
		if it.task.Priority == PriorityBackground {
			if newestBackground == nil || it.seq > newestBackground.seq {
				newestBackground = it
			}
		}
		if q.heap.Less(victim.heapIdx, it.heapIdx) {
			victim = it
		}
	}
	if newestBackground != nil {
		victim = newestBackground
	}

	heap.Remove(&q.heap, victim.heapIdx)
	delete(q.byID, victim.task.ID)
	return victim.task
}

// each calls fn for every queued task, in no particular order.
func (q *taskQueue) each(fn func(*Task)) {
	for _, it := range q.heap {
		fn(it.task)
	}
}

// reheap restores heap order after ordering fields changed in place.
func (q *taskQueue) reheap() {
	heap.Init(&q.heap)
}

// depthByPriority counts queued tasks per priority.
func (q *taskQueue) depthByPriority() map[Priority]int {
	depth := make(map[Priority]int)
	for _, it := range q.heap {
		depth[it.task.Priority]++
	}
	return depth
}
