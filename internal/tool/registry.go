package tool

import (
	"log/slog"
	"sync"

	"taskagent/internal/domain"
)

// Registry is the closed set of tools the agent may invoke. It is filled at
// startup and only read afterwards.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	order  []string
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds t under its name. A second registration with the same name
// replaces the first and keeps its original position.
func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn("tool registered twice, replacing previous", "name", name)
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	r.logger.Debug("registered tool", "name", name, "side_effects", t.HasSideEffects())
}

func (r *Registry) Resolve(name string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ResolveOrFail is Resolve with an *domain.UnknownToolError for missing names.
func (r *Registry) ResolveOrFail(name string) (domain.Tool, error) {
	if t, ok := r.Resolve(name); ok {
		return t, nil
	}
	return nil, &domain.UnknownToolError{Name: name, Available: r.Names()}
}

// ListMetadata returns the metadata of every tool in registration order.
func (r *Registry) ListMetadata() []domain.ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]domain.ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		metas = append(metas, domain.MetadataOf(r.tools[name]))
	}
	return metas
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
