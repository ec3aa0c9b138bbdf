// Package plugin hosts the controller's plugins. A plugin registers a
// Factory from init(), and cmd/main.go builds and starts whatever the
// binary was compiled with, in Order.
package plugin

import "heatingcontrol/internal/shadowstate"

// Plugin is a unit of automation with its own Home Assistant subscriptions
type Plugin interface {
	// Name is the registry key and the logger name
	Name() string

	// Start subscribes to the entities the plugin needs and brings it to
	// a consistent state with Home Assistant. A failed Start leaves
	// nothing subscribed.
	Start() error

	// Stop unsubscribes and waits for in-flight work. Safe to call twice.
	Stop()
}

// Resettable plugins can be forced to re-apply their decisions from current
// Home Assistant state. The reset coordinator calls Reset in plugin order
// when the reset entity is switched on.
type Resettable interface {
	Reset() error
}

// ShadowStateProvider exposes the inputs and outputs of a plugin's most
// recent decisions, served under /api/shadow.
type ShadowStateProvider interface {
	GetShadowState() shadowstate.PluginShadowState
}

// Factory creates a plugin from the shared Context
type Factory func(ctx *Context) (Plugin, error)
