// Package vip provides the bounded-growth priority queue feeding the VIP
// worker pool. Tasks are ordered by priority descending with FIFO tie-break
// on the enqueue sequence number.
package vip

import (
	"container/heap"
	"sync"

	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

// taskHeap implements heap.Interface over VipTasks: higher priority first,
// smaller seq first among equals.
type taskHeap []model.VipTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(model.VipTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Queue is the expedited-request queue. Close puts it into a terminal state:
// pushes become no-ops, pops drain the remaining tasks and then report done.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	tasks    taskHeap
	nextSeq  int64
	closed   bool
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	q := &Queue{nextSeq: 1}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a task for atmID with the given priority. The sequence
// number is assigned here, under the queue mutex. Pushing onto a closed
// queue is a no-op.
func (q *Queue) Push(atmID, priority int, line string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.tasks, model.VipTask{
		Priority: priority,
		Seq:      q.nextSeq,
		ATMID:    atmID,
		Line:     line,
	})
	q.nextSeq++
	depth := len(q.tasks)
	q.notEmpty.Signal()
	q.mu.Unlock()

	metrics.VIPTasksTotal.Inc()
	metrics.VIPQueueDepth.Set(float64(depth))
}

// Pop blocks until a task is available or the queue is closed and drained.
// The second result is false only in the terminal "done" state.
func (q *Queue) Pop() (model.VipTask, bool) {
	q.mu.Lock()
	for len(q.tasks) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return model.VipTask{}, false
	}
	t := heap.Pop(&q.tasks).(model.VipTask)
	depth := len(q.tasks)
	q.mu.Unlock()

	metrics.VIPQueueDepth.Set(float64(depth))
	return t, true
}

// Close marks the queue closed for new producers and wakes all waiting
// consumers so they can drain and exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}

// Len reports the number of waiting tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
