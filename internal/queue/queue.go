package queue

import (
	"log"
	"sync"
)

// Queue holds the ordered pending tasks and the busy flag for every
// destination chat. Destination state is created lazily on first push and the
// busy flag guarantees at most one drain loop per destination.
type Queue struct {
	mu      sync.Mutex
	pending map[int64][]*Task
	busy    map[int64]bool
	logger  *log.Logger
}

func NewQueue(logger *log.Logger) *Queue {
	return &Queue{
		pending: make(map[int64][]*Task),
		busy:    make(map[int64]bool),
		logger:  logger,
	}
}

// Push appends the task to its destination queue, or inserts it at the head
// when the task is marked priority.
func (q *Queue) Push(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.Priority {
		q.pending[task.ChatID] = append([]*Task{task}, q.pending[task.ChatID]...)
		q.logf("priority message queued chat=%d desc=%q pending=%d", task.ChatID, task.Description, len(q.pending[task.ChatID]))
		return
	}
	q.pending[task.ChatID] = append(q.pending[task.ChatID], task)
	q.logf("message queued chat=%d desc=%q pending=%d", task.ChatID, task.Description, len(q.pending[task.ChatID]))
}

// Pop removes and returns the head task, or nil when the queue is empty.
func (q *Queue) Pop(chatID int64) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(chatID)
}

func (q *Queue) popLocked(chatID int64) *Task {
	tasks := q.pending[chatID]
	if len(tasks) == 0 {
		return nil
	}
	head := tasks[0]
	q.pending[chatID] = tasks[1:]
	return head
}

func (q *Queue) Len(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[chatID])
}

func (q *Queue) IsBusy(chatID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy[chatID]
}

// Clear drops every pending task for the destination and resets its busy flag.
// An in-flight task finishes on its own; its drain loop notices the released
// flag and stops instead of double-draining.
func (q *Queue) Clear(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.pending[chatID])
	delete(q.pending, chatID)
	q.busy[chatID] = false
	if dropped > 0 {
		q.logf("queue cleared chat=%d dropped=%d", chatID, dropped)
	}
	return dropped
}

// claim marks the destination busy. It returns false when another drain loop
// already holds the destination.
func (q *Queue) claim(chatID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy[chatID] {
		return false
	}
	q.busy[chatID] = true
	return true
}

// popOrRelease atomically pops the next task, or releases the busy flag when
// the queue is empty or the claim was revoked by Clear. The atomicity closes
// the window where an enqueue between "queue empty" and "mark idle" would see
// a busy destination nobody is draining.
func (q *Queue) popOrRelease(chatID int64) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.busy[chatID] {
		return nil
	}
	task := q.popLocked(chatID)
	if task == nil {
		q.busy[chatID] = false
	}
	return task
}

// release unconditionally marks the destination idle.
func (q *Queue) release(chatID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy[chatID] = false
}

func (q *Queue) logf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Printf(format, args...)
	}
}
