package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every normalized event it receives. Tests and examples
// use it to assert what a store emitted.
type CaptureHook struct {
	Events []Event
	// Err is returned from every Notify call when set.
	Err error
	mu  sync.Mutex
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	h.Events = append(h.Events, NormalizeEvent(event))
	h.mu.Unlock()
	return h.Err
}

// Verbs lists the captured verbs in arrival order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Reset drops the captured events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.Events = nil
	h.mu.Unlock()
}
