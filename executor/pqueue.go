package executor

import "container/heap"

// priorityHeap is a max-heap of tasks ordered by Priority, ported from
// pqueue.PriorityQueue (original_source/ajenga_router/pqueue.py): highest
// priority pops first; FIFO among equal priorities is not guaranteed,
// matching the original's heapq-backed queue.
type priorityHeap struct {
	entries []*Task
}

func newPriorityHeap() *priorityHeap {
	h := &priorityHeap{}
	heap.Init(h)
	return h
}

func (h *priorityHeap) Len() int { return len(h.entries) }

func (h *priorityHeap) Less(i, j int) bool { return h.entries[i].Priority > h.entries[j].Priority }

func (h *priorityHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *priorityHeap) Push(x any) { h.entries = append(h.entries, x.(*Task)) }

func (h *priorityHeap) Pop() any {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[:n-1]
	return item
}

func (h *priorityHeap) push(t *Task) { heap.Push(h, t) }

func (h *priorityHeap) pop() *Task { return heap.Pop(h).(*Task) }

// topPriority returns the highest priority currently waiting, or def if
// the queue is empty. The heap invariant keeps the max-priority entry at
// the root, so this is O(1).
func (h *priorityHeap) topPriority(def Priority) Priority {
	if len(h.entries) == 0 {
		return def
	}
	return h.entries[0].Priority
}
