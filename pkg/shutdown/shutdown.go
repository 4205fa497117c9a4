package shutdown

import (
	"context"
	"sync"

	"github.com/zodic/zodic/pkg/logger"
)

type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager runs named shutdown callbacks.
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown registers a callback; nil handlers are ignored.
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown runs every callback concurrently and returns how many failed.
// A timeout on ctx counts as one more failure.
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	callbacks := m.callbacks
	m.callbacks = nil
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("no shutdown callbacks registered")
		return 0
	}

	logger.Infof("shutting down, %d callbacks", len(callbacks))

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   int
	)
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(h namedHandler) {
			defer wg.Done()
			if err := h.fn(ctx); err != nil {
				logger.Warnf("shutdown %s failed: %v", h.name, err)
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-ctx.Done():
		logger.Warnf("shutdown timed out: %v", ctx.Err())
		failedMu.Lock()
		defer failedMu.Unlock()
		return failed + 1
	}
	failedMu.Lock()
	defer failedMu.Unlock()
	return failed
}
