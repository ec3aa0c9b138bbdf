package shadowstate

import (
	"heatingcontrol/internal/state"
)

// InputCaptureHelper captures the values of a plugin's subscribed entities
// from a state.Reader, usually the snapshot a pass was evaluated against.
type InputCaptureHelper struct {
	registry *SubscriptionRegistry
}

// NewInputCaptureHelper creates a new input capture helper
func NewInputCaptureHelper(registry *SubscriptionRegistry) *InputCaptureHelper {
	return &InputCaptureHelper{
		registry: registry,
	}
}

// CaptureInputs returns every registered entity of pluginName mapped to its
// value in r. Unreadable entities map to nil.
func (h *InputCaptureHelper) CaptureInputs(pluginName string, r state.Reader) map[string]interface{} {
	inputs := make(map[string]interface{})

	for _, entityID := range h.registry.GetHASubscriptions(pluginName) {
		value, err := r.ReadValue(entityID)
		if err != nil {
			inputs[entityID] = nil
			continue
		}
		inputs[entityID] = value
	}

	return inputs
}

// CaptureInputsWithAdditional captures all registered subscriptions plus
// additional inputs, which win on conflict.
func (h *InputCaptureHelper) CaptureInputsWithAdditional(pluginName string, r state.Reader, additional map[string]interface{}) map[string]interface{} {
	inputs := h.CaptureInputs(pluginName, r)

	for k, v := range additional {
		inputs[k] = v
	}

	return inputs
}
