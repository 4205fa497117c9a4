package syncgroup

import (
	"sync"
)

// SyncGroup wraps sync.WaitGroup: Add funcs, Run them, then Wait.
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []func()
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add queues fn; nil is ignored.
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.pending = append(g.pending, fn)
	g.mu.Unlock()
}

// Run starts every queued func and empties the queue.
func (g *SyncGroup) Run() {
	g.mu.Lock()
	fns := g.pending
	g.pending = nil
	g.mu.Unlock()

	g.wg.Add(len(fns))
	for _, fn := range fns {
		go func(doFunc func()) {
			defer g.wg.Done()
			doFunc()
		}(fn)
	}
}

func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// RunAndWait Run + Wait
func (g *SyncGroup) RunAndWait() {
	g.Run()
	g.Wait()
}
