package queue

import (
	"log"
	"sync"
)

// Groups buffers tasks that must reach the destination as one contiguous,
// ordered block. Buckets are created lazily on the first Add and consumed
// exactly once when the group completes.
type Groups struct {
	mu      sync.Mutex
	buckets map[string][]*Task
	logger  *log.Logger
}

func NewGroups(logger *log.Logger) *Groups {
	return &Groups{
		buckets: make(map[string][]*Task),
		logger:  logger,
	}
}

// Add appends the task to the named bucket. Order inside a bucket is the
// order Add is called in; callers add in the order they want delivered.
func (g *Groups) Add(groupID string, task *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buckets[groupID] = append(g.buckets[groupID], task)
	g.logf("message added to group %s desc=%q size=%d", groupID, task.Description, len(g.buckets[groupID]))
}

// take removes and returns the bucket. A completed group cannot receive
// further tasks because its bucket no longer exists.
func (g *Groups) take(groupID string) ([]*Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, ok := g.buckets[groupID]
	if !ok {
		return nil, false
	}
	delete(g.buckets, groupID)
	return tasks, true
}

// Pending reports bucket sizes by group id, for the status command.
func (g *Groups) Pending() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	info := make(map[string]int, len(g.buckets))
	for groupID, tasks := range g.buckets {
		info[groupID] = len(tasks)
	}
	return info
}

func (g *Groups) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
