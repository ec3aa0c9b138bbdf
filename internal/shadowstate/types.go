package shadowstate

import "time"

// PluginShadowState is the interface that all plugin shadow states must implement
type PluginShadowState interface {
	GetCurrentInputs() map[string]interface{}
	GetLastActionInputs() map[string]interface{}
	GetOutputs() interface{}
	GetMetadata() StateMetadata
}

// StateMetadata contains metadata about the shadow state
type StateMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	PluginName  string    `json:"pluginName"`
}

// HeatingShadowState is the observable record of the heating controller.
// It is write-only from the controller's point of view: decisions never
// read it back.
type HeatingShadowState struct {
	Plugin   string         `json:"plugin"`
	Inputs   HeatingInputs  `json:"inputs"`
	Outputs  HeatingOutputs `json:"outputs"`
	Metadata StateMetadata  `json:"metadata"`
}

// HeatingInputs tracks entity values seen by the latest pass and by the
// latest pass that commanded a valve
type HeatingInputs struct {
	Current      map[string]interface{} `json:"current"`
	AtLastAction map[string]interface{} `json:"atLastAction"`
}

// HeatingOutputs tracks what the controller last decided
type HeatingOutputs struct {
	Mode           string               `json:"mode,omitempty"`
	Rooms          map[string]RoomState `json:"rooms"`
	LastPass       PassInfo             `json:"lastPass"`
	LastActionTime time.Time            `json:"lastActionTime"`
}

// PassInfo summarises one evaluation pass
type PassInfo struct {
	ID            string    `json:"id"`
	Trigger       string    `json:"trigger"`
	Time          time.Time `json:"time"`
	RoomsSelected int       `json:"roomsSelected"`
	Error         string    `json:"error,omitempty"`
}

// RoomState is the last recorded outcome for a room. Target and Current are
// nil when they were not read.
type RoomState struct {
	Target        *float64  `json:"target,omitempty"`
	Current       *float64  `json:"current,omitempty"`
	Action        string    `json:"action"`
	SkipReason    string    `json:"skipReason,omitempty"`
	Error         string    `json:"error,omitempty"`
	Valves        []string  `json:"valves,omitempty"`
	LastEvaluated time.Time `json:"lastEvaluated"`
	LastAction    time.Time `json:"lastAction,omitempty"`
}

// GetCurrentInputs implements PluginShadowState
func (h *HeatingShadowState) GetCurrentInputs() map[string]interface{} {
	return h.Inputs.Current
}

// GetLastActionInputs implements PluginShadowState
func (h *HeatingShadowState) GetLastActionInputs() map[string]interface{} {
	return h.Inputs.AtLastAction
}

// GetOutputs implements PluginShadowState
func (h *HeatingShadowState) GetOutputs() interface{} {
	return h.Outputs
}

// GetMetadata implements PluginShadowState
func (h *HeatingShadowState) GetMetadata() StateMetadata {
	return h.Metadata
}

// NewHeatingShadowState creates an empty heating shadow state
func NewHeatingShadowState() *HeatingShadowState {
	return &HeatingShadowState{
		Plugin: "heating",
		Inputs: HeatingInputs{
			Current:      make(map[string]interface{}),
			AtLastAction: make(map[string]interface{}),
		},
		Outputs: HeatingOutputs{
			Rooms: make(map[string]RoomState),
		},
		Metadata: StateMetadata{
			PluginName: "heating",
		},
	}
}
