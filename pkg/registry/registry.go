// Package registry maps node type tags to their action handlers.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/quantnest/executor/pkg/protocol"
)

var ErrHandlerNotFound = errors.New("action handler not registered")

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	actions map[string]protocol.Action
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		actions: make(map[string]protocol.Action),
	}
}

// RegisterAction adds or replaces the handler for action.ID().
func (r *Registry) RegisterAction(action protocol.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[action.ID()]; exists {
		r.logger.Warn("Replacing registered action", "type", action.ID())
	}

	r.actions[action.ID()] = action
}

// Action returns the handler for nodeType.
// nolint:ireturn // handlers are looked up by interface
func (r *Registry) Action(nodeType string) (protocol.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, nodeType)
	}

	return action, nil
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.actions))
	for nodeType := range r.actions {
		types = append(types, nodeType)
	}

	slices.Sort(types)

	return types
}

// Actions returns the registered handlers ordered by type.
func (r *Registry) Actions() []protocol.Action {
	types := r.Types()

	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]protocol.Action, 0, len(types))
	for _, nodeType := range types {
		actions = append(actions, r.actions[nodeType])
	}

	return actions
}

// Schemas returns the metadata schema of every registered handler keyed by type.
func (r *Registry) Schemas() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make(map[string]map[string]any, len(r.actions))
	for nodeType, action := range r.actions {
		schemas[nodeType] = action.Schema()
	}

	return schemas
}
