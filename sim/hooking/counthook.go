package hooking

import "sync"

// A Classifier names the category of a hook event. Events for which it
// returns false are not counted.
type Classifier func(ctx HookCtx) (string, bool)

// ByPosition classifies events by the name of their hook position.
func ByPosition(ctx HookCtx) (string, bool) {
	if ctx.Pos == nil {
		return "", false
	}

	return ctx.Pos.Name, true
}

// CountHook counts hook events per category.
type CountHook struct {
	classify Classifier
	lock     sync.Mutex

	names  []string
	counts map[string]uint64
}

// NewCountHook creates a CountHook.
func NewCountHook(classify Classifier) *CountHook {
	return &CountHook{
		classify: classify,
		counts:   make(map[string]uint64),
	}
}

// Func counts one event.
func (h *CountHook) Func(ctx HookCtx) {
	name, ok := h.classify(ctx)
	if !ok {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if _, seen := h.counts[name]; !seen {
		h.names = append(h.names, name)
	}

	h.counts[name]++
}

// Names returns the categories in the order they were first seen.
func (h *CountHook) Names() []string {
	h.lock.Lock()
	defer h.lock.Unlock()

	names := make([]string, len(h.names))
	copy(names, h.names)

	return names
}

// Count returns the number of events of a category.
func (h *CountHook) Count(name string) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.counts[name]
}
