package reset

import (
	"fmt"
	"sync"

	"heatingcontrol/internal/ha"
	"heatingcontrol/pkg/plugin"

	"go.uber.org/zap"
)

// Coordinator watches the reset boolean and orchestrates system-wide resets
type Coordinator struct {
	haClient     ha.HAClient
	entityID     string
	logger       *zap.Logger
	readOnly     bool
	plugins      []PluginWithName
	subscription ha.Subscription

	// resets run off the event goroutine; Stop waits for them
	wg sync.WaitGroup
	// mu serializes resets
	mu sync.Mutex

	// lifecycleMu guards stopped, so no reset starts once Stop is waiting
	lifecycleMu sync.Mutex
	stopped     bool
}

// PluginWithName pairs a resettable plugin with its name for logging
type PluginWithName struct {
	Name   string
	Plugin plugin.Resettable
}

// Resettables picks the plugins that implement plugin.Resettable
func Resettables(plugins []plugin.Plugin) []PluginWithName {
	var out []PluginWithName
	for _, p := range plugins {
		if r, ok := p.(plugin.Resettable); ok {
			out = append(out, PluginWithName{Name: p.Name(), Plugin: r})
		}
	}
	return out
}

// NewCoordinator creates a new reset coordinator watching entityID
func NewCoordinator(haClient ha.HAClient, entityID string, logger *zap.Logger, readOnly bool, plugins []PluginWithName) *Coordinator {
	return &Coordinator{
		haClient: haClient,
		entityID: entityID,
		logger:   logger.Named("reset"),
		readOnly: readOnly,
		plugins:  plugins,
	}
}

// Start begins monitoring the reset boolean
func (c *Coordinator) Start() error {
	c.logger.Info("Starting Reset Coordinator",
		zap.String("entity_id", c.entityID),
		zap.Int("plugin_count", len(c.plugins)),
		zap.Bool("read_only", c.readOnly))

	c.lifecycleMu.Lock()
	c.stopped = false
	c.lifecycleMu.Unlock()

	sub, err := c.haClient.SubscribeStateChanges(c.entityID, c.handleResetChange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.entityID, err)
	}
	c.subscription = sub

	c.logger.Info("Reset Coordinator started successfully")
	return nil
}

// Stop cleans up the coordinator and waits for a running reset to finish
func (c *Coordinator) Stop() {
	c.lifecycleMu.Lock()
	c.stopped = true
	c.lifecycleMu.Unlock()

	if c.subscription != nil {
		c.subscription.Unsubscribe()
		c.subscription = nil
	}
	c.wg.Wait()
	c.logger.Info("Reset Coordinator stopped")
}

// handleResetChange processes reset boolean changes. It runs on the client's
// receive goroutine, which must stay free to deliver the replies the reset
// itself waits for.
func (c *Coordinator) handleResetChange(entityID string, oldState, newState *ha.State) {
	// Only act when reset goes from off -> on
	if newState == nil || newState.State != "on" {
		return
	}
	if oldState != nil && oldState.State == "on" {
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.stopped {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reset()
	}()
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Reset triggered - coordinating system-wide reset")

	// Turn reset back off immediately to prevent loops
	if !c.readOnly {
		err := c.haClient.CallService("input_boolean", "turn_off", map[string]interface{}{
			"entity_id": c.entityID,
		})
		if err != nil {
			c.logger.Error("Failed to turn reset off", zap.Error(err))
			// Continue with reset anyway
		} else {
			c.logger.Info("Reset boolean turned off")
		}
	} else {
		c.logger.Info("READ-ONLY: Would turn reset boolean off")
	}

	c.executeReset()
}

// executeReset calls Reset() on all plugins in order
func (c *Coordinator) executeReset() {
	c.logger.Info("Executing reset on all plugins",
		zap.Int("plugin_count", len(c.plugins)))

	successCount := 0
	errorCount := 0

	for _, p := range c.plugins {
		c.logger.Info("Resetting plugin", zap.String("plugin", p.Name))

		if err := p.Plugin.Reset(); err != nil {
			c.logger.Error("Failed to reset plugin",
				zap.String("plugin", p.Name),
				zap.Error(err))
			errorCount++
			continue
		}
		c.logger.Info("Successfully reset plugin", zap.String("plugin", p.Name))
		successCount++
	}

	c.logger.Info("Reset complete",
		zap.Int("success", successCount),
		zap.Int("errors", errorCount),
		zap.Int("total", len(c.plugins)))
}
