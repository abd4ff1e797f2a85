package hooks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrHalt is returned by a handler that has fully answered the request.
// Fire stops at the first non-nil error, so later handlers never run.
var ErrHalt = errors.New("request handled")

// DefaultPriority is used by RegisterHandler
const DefaultPriority = 10

// Handler reacts to a named event
type Handler[P any] func(ctx context.Context, payload P) error

type registration[P any] struct {
	name     string
	priority int
	seq      int
	handler  Handler[P]
}

// Registry maps event names to ordered handler lists.
// Lower priority values run first; equal priorities run in registration order.
type Registry[P any] struct {
	mu       sync.RWMutex
	handlers map[string][]registration[P]
	seq      int
	logger   *zap.Logger
}

func NewRegistry[P any](logger *zap.Logger) *Registry[P] {
	return &Registry[P]{
		handlers: make(map[string][]registration[P]),
		logger:   logger,
	}
}

// RegisterHandler attaches handler to event at DefaultPriority
func (r *Registry[P]) RegisterHandler(event, name string, handler Handler[P]) {
	r.RegisterHandlerWithPriority(event, name, DefaultPriority, handler)
}

// RegisterHandlerWithPriority attaches handler to event. Registering the same
// name twice for one event replaces the earlier handler.
func (r *Registry[P]) RegisterHandlerWithPriority(event, name string, priority int, handler Handler[P]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[event]
	for i, reg := range list {
		if reg.name == name {
			r.logger.Warn("Overwriting existing hook registration",
				zap.String("event", event),
				zap.String("handler", name))
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	r.seq++
	list = append(list, registration[P]{name: name, priority: priority, seq: r.seq, handler: handler})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.handlers[event] = list

	r.logger.Debug("Registered hook handler",
		zap.String("event", event),
		zap.String("handler", name),
		zap.Int("priority", priority))
}

// Fire runs every handler registered for event in order and returns the first error.
func (r *Registry[P]) Fire(ctx context.Context, event string, payload P) error {
	r.mu.RLock()
	list := make([]registration[P], len(r.handlers[event]))
	copy(list, r.handlers[event])
	r.mu.RUnlock()

	for _, reg := range list {
		if err := reg.handler(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// Handlers lists handler names for event in execution order
func (r *Registry[P]) Handlers(event string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers[event]))
	for _, reg := range r.handlers[event] {
		names = append(names, reg.name)
	}
	return names
}
