package queue

import "sort"

// priorityHeap orders Items by (-priority, enqueuedAt), i.e. higher
// priority first, ties broken by insertion order (the seq assigned at
// Enqueue time, which is monotonic with enqueuedAt).
type priorityHeap []*Item

func less(a, b *Item) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (h priorityHeap) Len() int            { return len(h) }
func (h priorityHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// sortForPosition returns items in full priority order for position lookups
// and diagnostics; heap order only guarantees the root, not a full sort.
func sortForPosition(items priorityHeap) {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
}
