package dispatch

import (
	"github.com/atmx/bank-engine/internal/bank"
	"github.com/atmx/bank-engine/internal/vip"
)

// RunVIPWorker drains the priority queue, executing each task on behalf of
// its source agent with no per-operation pacing. Returns once the queue is
// closed and empty.
func RunVIPWorker(eng *bank.Engine, q *vip.Queue) error {
	for {
		task, ok := q.Pop()
		if !ok {
			return nil
		}
		if err := ExecuteLine(eng, task.ATMID, task.Line, 0); err != nil {
			return err
		}
	}
}
