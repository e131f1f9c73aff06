package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/toolmesh/broker/tool"
)

// Registry is the in-process mapping from tool name to Tool.
// It is populated at startup and read-only for the lifetime of a serving
// session. Reads and writes are guarded by an RWMutex so that late
// registration, should a deployment need it, stays safe against
// concurrent invocations.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]tool.Tool
	logger *slog.Logger
}

// New creates an empty Registry.
// The logger may be nil, in which case registration is not logged.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]tool.Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name is already registered;
// tool names identify descriptors uniquely and are immutable once added.
func (r *Registry) Register(t tool.Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if t.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name())
	}

	r.tools[t.Name()] = t
	if r.logger != nil {
		r.logger.Debug("tool registered", "tool", t.Name(), "version", t.Version())
	}
	return nil
}

// RegisterAll adds multiple tools, stopping at the first failure.
func (r *Registry) RegisterAll(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a tool by name.
// The second return value reports whether the tool exists.
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns descriptors for all registered tools in lexical name order.
// The returned slice is a snapshot; mutating it does not affect the registry.
func (r *Registry) List() []tool.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]tool.Descriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, tool.ToDescriptor(r.tools[name]))
	}
	return descriptors
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
