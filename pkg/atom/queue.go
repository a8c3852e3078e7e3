package atom

import "runtime/debug"

// TaskQueue is a manual Scheduler. Deferred tasks run when Drain is called,
// which makes turn boundaries explicit in tests and tools.
type TaskQueue struct {
	tasks []func()
}

// Defer appends task to the queue.
func (q *TaskQueue) Defer(task func()) {
	q.tasks = append(q.tasks, task)
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// Drain runs queued tasks in FIFO order, including tasks deferred while
// draining, until the queue is empty. It returns the number of tasks run.
func (q *TaskQueue) Drain() int {
	n := 0
	for len(q.tasks) > 0 {
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		t()
		n++
	}
	return n
}

func stack() []byte {
	return debug.Stack()
}
