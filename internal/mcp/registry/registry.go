package registry

import (
	"context"
	"fmt"
	"sync"

	"chisel/internal/shared/util"
)

type Handler func(ctx context.Context, input any) (any, error)

// Registry maps operation identifiers to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(operation string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	if operation == "" {
		return fmt.Errorf("operation name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[operation]; exists {
		return fmt.Errorf("operation already registered: %s", operation)
	}
	r.handlers[operation] = handler
	return nil
}

func (r *Registry) HandlerFor(operation string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[operation]
	return h, ok
}

// Operations returns the registered operation names in sorted order.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return util.SortedStringKeys(r.handlers)
}
