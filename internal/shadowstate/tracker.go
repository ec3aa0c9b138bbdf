package shadowstate

import (
	"math"
	"sync"
	"time"

	"heatingcontrol/internal/heating"
)

// Tracker manages shadow state for all plugins
type Tracker struct {
	mu             sync.RWMutex
	pluginStates   map[string]PluginShadowState
	stateProviders map[string]func() PluginShadowState
}

// NewTracker creates a new shadow state tracker
func NewTracker() *Tracker {
	return &Tracker{
		pluginStates:   make(map[string]PluginShadowState),
		stateProviders: make(map[string]func() PluginShadowState),
	}
}

// RegisterPlugin registers a plugin's shadow state
func (t *Tracker) RegisterPlugin(pluginName string, state PluginShadowState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pluginStates[pluginName] = state
}

// RegisterPluginProvider registers a function that provides a plugin's shadow state dynamically
func (t *Tracker) RegisterPluginProvider(pluginName string, provider func() PluginShadowState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateProviders[pluginName] = provider
}

// GetPluginState retrieves a plugin's shadow state
func (t *Tracker) GetPluginState(pluginName string) (PluginShadowState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if provider, ok := t.stateProviders[pluginName]; ok {
		return provider(), true
	}

	state, ok := t.pluginStates[pluginName]
	return state, ok
}

// GetAllPluginStates retrieves all plugin shadow states. Providers win over
// static states registered under the same name.
func (t *Tracker) GetAllPluginStates() map[string]PluginShadowState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]PluginShadowState, len(t.pluginStates)+len(t.stateProviders))
	for k, v := range t.pluginStates {
		states[k] = v
	}
	for k, provider := range t.stateProviders {
		states[k] = provider()
	}

	return states
}

// HeatingTracker records heating passes for observability
type HeatingTracker struct {
	mu    sync.RWMutex
	state *HeatingShadowState
}

// NewHeatingTracker creates a new heating shadow state tracker
func NewHeatingTracker() *HeatingTracker {
	return &HeatingTracker{
		state: NewHeatingShadowState(),
	}
}

// UpdateCurrentInputs replaces the current input values
func (ht *HeatingTracker) UpdateCurrentInputs(inputs map[string]interface{}) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	for key, value := range inputs {
		ht.state.Inputs.Current[key] = value
	}
	ht.state.Metadata.LastUpdated = time.Now()
}

// SnapshotInputsForAction captures current inputs as the at-last-action snapshot
func (ht *HeatingTracker) SnapshotInputsForAction() {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	ht.state.Inputs.AtLastAction = make(map[string]interface{}, len(ht.state.Inputs.Current))
	for key, value := range ht.state.Inputs.Current {
		ht.state.Inputs.AtLastAction[key] = value
	}
}

// RecordPass stores the outcome of a pass taken at time at
func (ht *HeatingTracker) RecordPass(result heating.PassResult, at time.Time) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	info := PassInfo{
		ID:            result.ID,
		Trigger:       result.Trigger.String(),
		Time:          at,
		RoomsSelected: len(result.Rooms),
	}
	if result.Err != nil {
		info.Error = result.Err.Error()
	} else {
		ht.state.Outputs.Mode = result.Global.Mode.String()
	}
	ht.state.Outputs.LastPass = info

	for _, outcome := range result.Rooms {
		prev := ht.state.Outputs.Rooms[outcome.Room]
		room := RoomState{
			Target:        floatPtr(outcome.Target),
			Current:       floatPtr(outcome.Current),
			Action:        outcome.Action.String(),
			SkipReason:    string(outcome.Skipped),
			LastEvaluated: at,
			LastAction:    prev.LastAction,
		}
		if outcome.Err != nil {
			room.Error = outcome.Err.Error()
		}
		if len(outcome.Commands) > 0 {
			room.LastAction = at
			ht.state.Outputs.LastActionTime = at
			for _, cmd := range outcome.Commands {
				room.Valves = append(room.Valves, cmd.EntityID)
				if cmd.Err != nil && room.Error == "" {
					room.Error = cmd.Err.Error()
				}
			}
		} else {
			room.Valves = prev.Valves
		}
		ht.state.Outputs.Rooms[outcome.Room] = room
	}

	ht.state.Metadata.LastUpdated = at
}

func floatPtr(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// GetState returns a deep copy of the current shadow state
func (ht *HeatingTracker) GetState() *HeatingShadowState {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	stateCopy := &HeatingShadowState{
		Plugin: ht.state.Plugin,
		Inputs: HeatingInputs{
			Current:      make(map[string]interface{}, len(ht.state.Inputs.Current)),
			AtLastAction: make(map[string]interface{}, len(ht.state.Inputs.AtLastAction)),
		},
		Outputs: HeatingOutputs{
			Mode:           ht.state.Outputs.Mode,
			Rooms:          make(map[string]RoomState, len(ht.state.Outputs.Rooms)),
			LastPass:       ht.state.Outputs.LastPass,
			LastActionTime: ht.state.Outputs.LastActionTime,
		},
		Metadata: ht.state.Metadata,
	}

	for k, v := range ht.state.Inputs.Current {
		stateCopy.Inputs.Current[k] = v
	}
	for k, v := range ht.state.Inputs.AtLastAction {
		stateCopy.Inputs.AtLastAction[k] = v
	}
	for k, v := range ht.state.Outputs.Rooms {
		v.Valves = append([]string(nil), v.Valves...)
		stateCopy.Outputs.Rooms[k] = v
	}

	return stateCopy
}
