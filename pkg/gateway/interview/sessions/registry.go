// Package sessions tracks live interview sessions so the server can count,
// notify, and drain them on shutdown. It is the only cross-session shared
// structure in the process.
package sessions

import (
	"context"
	"sync"
)

// Handle exposes the controls a registered session offers the registry.
type Handle struct {
	Cancel func()
	Notify func(message string)
}

// Registry is a process-wide map of live sessions.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

type entry struct {
	handle Handle
	once   sync.Once
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a session and returns its idempotent unregister func. A
// duplicate id cancels, evicts, and unregisters the previous entry so the
// loser cannot keep running untracked.
func (r *Registry) Register(sessionID string, h Handle) (unregister func()) {
	if r == nil {
		return func() {}
	}

	e := &entry{handle: h}

	r.mu.Lock()
	if r.entries == nil {
		r.entries = make(map[string]*entry)
	}
	old := r.entries[sessionID]
	r.entries[sessionID] = e
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		if old.handle.Cancel != nil {
			old.handle.Cancel()
		}
		r.unregister(sessionID, old)
	}

	return func() { r.unregister(sessionID, e) }
}

func (r *Registry) unregister(sessionID string, e *entry) {
	if r == nil || e == nil {
		return
	}
	e.once.Do(func() {
		r.mu.Lock()
		if r.entries != nil && r.entries[sessionID] == e {
			delete(r.entries, sessionID)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// NotifyAll sends a status message to every live session, outside the lock.
func (r *Registry) NotifyAll(message string) (sent int) {
	if r == nil {
		return 0
	}

	var notifies []func(string)
	r.mu.Lock()
	for _, e := range r.entries {
		if e == nil || e.handle.Notify == nil {
			continue
		}
		notifies = append(notifies, e.handle.Notify)
	}
	r.mu.Unlock()

	for _, notify := range notifies {
		notify(message)
		sent++
	}
	return sent
}

// CancelAll aborts every live session, outside the lock.
func (r *Registry) CancelAll() (canceled int) {
	if r == nil {
		return 0
	}

	var cancels []func()
	r.mu.Lock()
	for _, e := range r.entries {
		if e == nil || e.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, e.handle.Cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered, or ctx ends.
// It reports whether the registry fully drained.
func (r *Registry) Wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
