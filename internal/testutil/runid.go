package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates predictable archive run ids for tests:
// "<prefix>-0001", "<prefix>-0002", ...
//
// This enables golden trace comparison. The same scenario produces the same
// run ids on every execution.
//
// Thread-safety: SequentialRunIDs is safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. If prefix is empty, "run" is used.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run id.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
