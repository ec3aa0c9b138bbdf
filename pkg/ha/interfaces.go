// Package ha is the Home Assistant client surface handed to plugins through
// plugin.Context. internal/ha implements it; WrapClient and UnwrapClient
// convert between the two.
package ha

import (
	"time"
)

// State is one entity as Home Assistant reports it
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// StateChangeHandler receives state_changed events for one entity. It runs
// on the client's receive goroutine and must not call back into the client.
type StateChangeHandler func(entityID string, oldState, newState *State)

// Subscription is returned by SubscribeStateChanges
type Subscription interface {
	Unsubscribe() error
}

// Client mirrors internal/ha.HAClient
type Client interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	GetState(entityID string) (*State, error)
	GetAllStates() ([]*State, error)
	CallService(domain, service string, data map[string]interface{}) error
	SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error)
	// OnReconnect registers fn to run after every successful reconnect
	OnReconnect(fn func())
}
