package routing

import "container/heap"

type pqItem struct {
	node int
	cost float64
	seq  uint64
}

// priorityQueue is a binary min-heap on cost. Equal costs pop in insertion
// order so searches are deterministic.
type priorityQueue struct {
	items []pqItem
	next  uint64
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.items[i].cost != pq.items[j].cost {
		return pq.items[i].cost < pq.items[j].cost
	}
	return pq.items[i].seq < pq.items[j].seq
}

func (pq *priorityQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *priorityQueue) Push(x any) { pq.items = append(pq.items, x.(pqItem)) }

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

func (pq *priorityQueue) push(node int, cost float64) {
	heap.Push(pq, pqItem{node: node, cost: cost, seq: pq.next})
	pq.next++
}

func (pq *priorityQueue) pop() pqItem { return heap.Pop(pq).(pqItem) }
