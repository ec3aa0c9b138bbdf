package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"heatingcontrol/internal/shadowstate"

	"go.uber.org/zap"
)

// Priority constants for plugin registration.
// Higher priority values override lower priority plugins with the same name.
const (
	// PriorityDefault is the default priority for plugins.
	PriorityDefault = 0

	// PriorityOverride is used by site-specific implementations that
	// replace a default plugin of the same name.
	PriorityOverride = 100
)

// DefaultOrder is the startup order assigned to plugins that set none
const DefaultOrder = 50

// PluginInfo contains metadata about a registered plugin.
type PluginInfo struct {
	// Name is the unique identifier for the plugin.
	// Plugins with the same name will override based on priority.
	Name string

	// Description is a human-readable description of the plugin.
	Description string

	// Priority determines which plugin wins when multiple plugins
	// register with the same name. Higher priority wins.
	Priority int

	// Factory creates new instances of the plugin.
	Factory Factory

	// Order specifies the startup order. Lower values start first.
	Order int
}

// Registry manages plugin registration and instantiation.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
	logger  *zap.Logger
}

// NewRegistry creates a new plugin registry. Registrations are not logged
// until SetLogger is called.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger used for registration messages
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger.Named("plugins")
}

// Register adds a plugin to the registry.
// If a plugin with the same name already exists, the one with higher
// priority wins. If priorities are equal, the later registration wins.
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	existing, exists := r.plugins[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			r.logger.Info("Plugin registration skipped",
				zap.String("plugin", info.Name),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}
		r.logger.Info("Plugin being overridden",
			zap.String("plugin", info.Name),
			zap.Int("old_priority", existing.Priority),
			zap.Int("new_priority", info.Priority))
	}

	r.plugins[info.Name] = info

	if !exists {
		r.order = append(r.order, info.Name)
	}

	r.logger.Debug("Plugin registered",
		zap.String("plugin", info.Name),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order),
		zap.String("description", info.Description))

	return nil
}

// Get returns the plugin info for a given name, or nil if not found.
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns all registered plugins sorted by their startup order.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.plugins))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// CreateAll instantiates all registered plugins using the provided context,
// in startup order. Already created plugins are stopped if one fails.
func (r *Registry) CreateAll(ctx *Context) ([]Plugin, error) {
	plugins := r.List()
	result := make([]Plugin, 0, len(plugins))

	for _, info := range plugins {
		plugin, err := info.Factory(ctx)
		if err != nil {
			for i := len(result) - 1; i >= 0; i-- {
				result[i].Stop()
			}
			return nil, fmt.Errorf("failed to create plugin %s: %w", info.Name, err)
		}
		result = append(result, plugin)
	}

	return result, nil
}

// Names returns the names of all registered plugins.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clear removes all registered plugins. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

// StartAll starts plugins in order. If one fails, those already started are
// stopped in reverse order.
func StartAll(plugins []Plugin) error {
	for i, p := range plugins {
		if err := p.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				plugins[j].Stop()
			}
			return fmt.Errorf("failed to start plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// StopAll stops plugins in reverse order
func StopAll(plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Stop()
	}
}

// ResetAll calls Reset on every plugin that implements Resettable and
// returns all failures joined.
func ResetAll(plugins []Plugin) error {
	var errs []error
	for _, p := range plugins {
		if r, ok := p.(Resettable); ok {
			if err := r.Reset(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// RegisterShadowStates registers every ShadowStateProvider with tracker
func RegisterShadowStates(tracker *shadowstate.Tracker, plugins []Plugin) {
	for _, p := range plugins {
		if provider, ok := p.(ShadowStateProvider); ok {
			tracker.RegisterPluginProvider(p.Name(), provider.GetShadowState)
		}
	}
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// This is typically called from init() functions in plugin packages.
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// SetLogger sets the logger of the global registry.
func SetLogger(logger *zap.Logger) {
	globalRegistry.SetLogger(logger)
}

// Get returns plugin info from the global registry.
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// List returns all plugins from the global registry.
func List() []PluginInfo {
	return globalRegistry.List()
}

// CreateAll creates all plugins from the global registry.
func CreateAll(ctx *Context) ([]Plugin, error) {
	return globalRegistry.CreateAll(ctx)
}

// Names returns all plugin names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}

// ClearGlobal clears the global registry. Useful for testing.
func ClearGlobal() {
	globalRegistry.Clear()
}
