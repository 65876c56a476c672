// Package hooking lets observers attach to well-known positions inside the
// cache model and its replacement policies.
package hooking

import (
	"fmt"
	"log"
)

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc turns an ordinary function into a Hook. Hooks created from the
// same function value are still distinct registrations, so wrap the function
// once and keep the pointer.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f *HookFunc) Func(ctx HookCtx) {
	(*f)(ctx)
}

// NewHookFunc wraps f as a Hook.
func NewHookFunc(f func(ctx HookCtx)) *HookFunc {
	h := HookFunc(f)
	return &h
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the register Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

// A LogHook prints every event it receives, one line per event.
type LogHook struct {
	*log.Logger

	// Filter, if set, limits logging to the given positions.
	Filter []*HookPos
}

// NewLogHook creates a LogHook that writes to logger.
func NewLogHook(logger *log.Logger, positions ...*HookPos) *LogHook {
	return &LogHook{
		Logger: logger,
		Filter: positions,
	}
}

// Func writes the hook position and the detail of the event.
func (h *LogHook) Func(ctx HookCtx) {
	if !h.accepts(ctx.Pos) {
		return
	}

	h.Print(formatCtx(ctx))
}

func (h *LogHook) accepts(pos *HookPos) bool {
	if len(h.Filter) == 0 {
		return true
	}

	for _, p := range h.Filter {
		if p == pos {
			return true
		}
	}

	return false
}

func formatCtx(ctx HookCtx) string {
	name := "unknown"
	if ctx.Pos != nil {
		name = ctx.Pos.Name
	}

	if ctx.Detail == nil {
		return name
	}

	return fmt.Sprintf("%s, %+v", name, ctx.Detail)
}
