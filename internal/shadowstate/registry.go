package shadowstate

import "sync"

// SubscriptionRegistry tracks which Home Assistant entities each plugin
// subscribes to, so inputs can be captured without plugins keeping their
// own lists.
type SubscriptionRegistry struct {
	mu              sync.RWMutex
	haSubscriptions map[string][]string // pluginName -> []entityID
}

// NewSubscriptionRegistry creates a new subscription registry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		haSubscriptions: make(map[string][]string),
	}
}

// RegisterHASubscription registers that a plugin subscribes to a Home Assistant entity
func (r *SubscriptionRegistry) RegisterHASubscription(pluginName, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.haSubscriptions[pluginName] {
		if existing == entityID {
			return
		}
	}

	r.haSubscriptions[pluginName] = append(r.haSubscriptions[pluginName], entityID)
}

// GetHASubscriptions returns all Home Assistant entities a plugin subscribes to
func (r *SubscriptionRegistry) GetHASubscriptions(pluginName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.haSubscriptions[pluginName]
	if subs == nil {
		return nil
	}

	result := make([]string, len(subs))
	copy(result, subs)
	return result
}

// UnregisterPlugin removes all subscription registrations for a plugin
func (r *SubscriptionRegistry) UnregisterPlugin(pluginName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.haSubscriptions, pluginName)
}

// GetAllPlugins returns a list of all registered plugin names
func (r *SubscriptionRegistry) GetAllPlugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.haSubscriptions))
	for name := range r.haSubscriptions {
		result = append(result, name)
	}
	return result
}
