package heating

import (
	"fmt"

	"heatingcontrol/internal/config"
	"heatingcontrol/internal/heating"
	"heatingcontrol/internal/shadowstate"
	pkgha "heatingcontrol/pkg/ha"
	"heatingcontrol/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        pluginName,
		Description: "Reactive hysteresis control of room heating valves",
		Priority:    plugin.PriorityDefault,
		Order:       plugin.DefaultOrder,
		Factory:     createPlugin,
	})
}

// createPlugin creates a new heating plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	haClient := pkgha.UnwrapClient(ctx.HAClient)
	if haClient == nil {
		return nil, fmt.Errorf("heating plugin requires internal ha.HAClient")
	}

	loader := config.NewLoader(ctx.ConfigDir, ctx.Logger)
	if err := loader.LoadAll(); err != nil {
		return nil, err
	}

	opts := []Option{WithMetrics(ctx.Metrics)}
	if ctx.SubscriptionRegistry != nil {
		opts = append(opts, WithSubscriptionRegistry(ctx.SubscriptionRegistry))
	}
	if ctx.Clock != nil {
		opts = append(opts, WithClock(ctx.Clock))
	}

	manager, err := NewManager(haClient, loader.GetHeatingConfig(), ctx.Logger, ctx.ReadOnly, opts...)
	if err != nil {
		return nil, err
	}
	return &pluginAdapter{manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return pluginName
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}

// Implement plugin.Resettable
func (p *pluginAdapter) Reset() error {
	return p.manager.Reset()
}

// Implement plugin.ShadowStateProvider
func (p *pluginAdapter) GetShadowState() shadowstate.PluginShadowState {
	return p.manager.GetShadowState()
}

// Rooms implements the API's room source
func (p *pluginAdapter) Rooms() []heating.Room {
	return p.manager.Rooms()
}

// RequestEvaluation queues a pass for entityID, or a full pass when it is
// empty. It returns false if entityID does not belong to any room.
func (p *pluginAdapter) RequestEvaluation(entityID string) (heating.Trigger, bool) {
	if entityID == "" {
		p.manager.Request(heating.FullEvaluation)
		return heating.FullEvaluation, true
	}
	trigger, ok := p.manager.TriggerFor(entityID)
	if !ok {
		return heating.Trigger{}, false
	}
	p.manager.Request(trigger)
	return trigger, true
}

// GetManager returns the underlying Manager instance.
func (p *pluginAdapter) GetManager() *Manager {
	return p.manager
}
