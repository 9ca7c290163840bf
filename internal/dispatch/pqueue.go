// Package dispatch implements the deadline dispatcher: a feeder that files
// every incoming control message into a priority queue keyed on timestamp,
// and a dispatcher loop that relays due messages to the target
// instrument's play queue and honours STOP_VOICE/SHUTDOWN in-band.
package dispatch

import (
	"container/heap"

	"github.com/astrid-audio/astrid/internal/astridmsg"
)

// node is one priority-queue entry: a message plus the monotonic insertion
// sequence used to break ties between equal timestamps, the same shape
// MrWong99's audio mixer priority queue uses for stable FIFO ordering on
// equal priority.
type node struct {
	msg astridmsg.Message
	seq uint64
	idx int // heap index, maintained by container/heap
}

// pqueue is a min-heap ordered by (timestamp, seq) so that equal
// timestamps dispatch in insertion order.
type pqueue struct {
	nodes []*node
	seq   uint64
}

func newPQueue() *pqueue {
	return &pqueue{}
}

func (pq *pqueue) Len() int { return len(pq.nodes) }

func (pq *pqueue) Less(i, j int) bool {
	a, b := pq.nodes[i], pq.nodes[j]
	if a.msg.Timestamp != b.msg.Timestamp {
		return a.msg.Timestamp < b.msg.Timestamp
	}
	return a.seq < b.seq
}

func (pq *pqueue) Swap(i, j int) {
	pq.nodes[i], pq.nodes[j] = pq.nodes[j], pq.nodes[i]
	pq.nodes[i].idx = i
	pq.nodes[j].idx = j
}

func (pq *pqueue) Push(x any) {
	n := x.(*node)
	n.idx = len(pq.nodes)
	pq.nodes = append(pq.nodes, n)
}

func (pq *pqueue) Pop() any {
	old := pq.nodes
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	pq.nodes = old[:n-1]
	return item
}

// insert files msg into the heap with the next insertion sequence number.
func (pq *pqueue) insert(msg astridmsg.Message) {
	pq.seq++
	heap.Push(pq, &node{msg: msg, seq: pq.seq})
}

// peek returns the head node without removing it.
func (pq *pqueue) peek() (*node, bool) {
	if len(pq.nodes) == 0 {
		return nil, false
	}
	return pq.nodes[0], true
}

// popHead removes and returns the head node.
func (pq *pqueue) popHead() *node {
	return heap.Pop(pq).(*node)
}

// removeVoice removes every node whose VoiceID matches voiceID, collecting
// matches first and then removing them, so nodes are never skipped by a
// mutating scan over a compacting backing array: removing index i while
// iterating forward would shift the next node into i and skip it.
func (pq *pqueue) removeVoice(voiceID uint64) int {
	var toRemove []int
	for i, n := range pq.nodes {
		if n.msg.VoiceID == voiceID {
			toRemove = append(toRemove, i)
		}
	}
	if len(toRemove) == 0 {
		return 0
	}

	matched := make(map[*node]bool, len(toRemove))
	for _, i := range toRemove {
		matched[pq.nodes[i]] = true
	}

	for len(matched) > 0 {
		for i, n := range pq.nodes {
			if matched[n] {
				heap.Remove(pq, i)
				delete(matched, n)
				break
			}
		}
	}
	return len(toRemove)
}

func (pq *pqueue) len() int {
	return len(pq.nodes)
}
