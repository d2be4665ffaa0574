package vip_test

import (
	"testing"
	"time"

	"github.com/atmx/bank-engine/internal/vip"
)

func TestPopOrdersByPriorityThenFIFO(t *testing.T) {
	q := vip.NewQueue()
	q.Push(1, 5, "first-five")
	q.Push(2, 10, "ten")
	q.Push(3, 5, "second-five")
	q.Push(4, 1, "one")

	want := []string{"ten", "first-five", "second-five", "one"}
	for i, w := range want {
		task, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue reported done", i)
		}
		if task.Line != w {
			t.Errorf("pop %d = %q, want %q", i, task.Line, w)
		}
	}
}

func TestSeqIsMonotonic(t *testing.T) {
	q := vip.NewQueue()
	q.Push(1, 50, "a")
	q.Push(1, 50, "b")
	q.Push(1, 50, "c")

	var last int64
	for i := 0; i < 3; i++ {
		task, ok := q.Pop()
		if !ok {
			t.Fatal("unexpected done")
		}
		if task.Seq <= last {
			t.Errorf("seq %d not increasing after %d", task.Seq, last)
		}
		last = task.Seq
	}
}

func TestCloseDrainsThenReportsDone(t *testing.T) {
	q := vip.NewQueue()
	q.Push(1, 7, "pending")
	q.Close()

	task, ok := q.Pop()
	if !ok || task.Line != "pending" {
		t.Fatalf("expected drained task, got ok=%v line=%q", ok, task.Line)
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected done after drain")
	}
}

func TestPushAfterCloseIsNoOp(t *testing.T) {
	q := vip.NewQueue()
	q.Close()
	q.Push(1, 7, "late")
	if _, ok := q.Pop(); ok {
		t.Error("task accepted after close")
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d after closed push, want 0", q.Len())
	}
}

func TestBlockedPopWakesOnPush(t *testing.T) {
	q := vip.NewQueue()

	got := make(chan string, 1)
	go func() {
		task, ok := q.Pop()
		if ok {
			got <- task.Line
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(1, 3, "wake")

	select {
	case line := <-got:
		if line != "wake" {
			t.Errorf("popped %q, want wake", line)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked pop never woke")
	}
}

func TestBlockedPopWakesOnClose(t *testing.T) {
	q := vip.NewQueue()

	done := make(chan struct{})
	go func() {
		if _, ok := q.Pop(); !ok {
			close(done)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked pop never observed close")
	}
}
