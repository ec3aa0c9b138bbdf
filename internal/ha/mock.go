package ha

import (
	"fmt"
	"sync"
	"time"
)

// MockClient implements HAClient interface for testing
type MockClient struct {
	states       map[string]*State
	statesMu     sync.RWMutex
	subscribers  map[string][]subscriberEntry
	subsMu       sync.RWMutex
	nextSubID    int
	connected    bool
	connMu       sync.RWMutex
	serviceCalls []ServiceCall
	callErr      error
	getStatesErr error
	callsMu      sync.Mutex
	onReconnect  []func()
	hooksMu      sync.Mutex
}

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// EntityID returns the entity_id of the call's service data, if any
func (c ServiceCall) EntityID() string {
	id, _ := c.Data["entity_id"].(string)
	return id
}

type mockSubscription struct {
	entityID string
	subID    int
	mock     *MockClient
}

func (s *mockSubscription) Unsubscribe() error {
	return s.mock.unsubscribe(s.entityID, s.subID)
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		states:       make(map[string]*State),
		subscribers:  make(map[string][]subscriberEntry),
		serviceCalls: make([]ServiceCall, 0),
	}
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.subsMu.Lock()
	m.subscribers = make(map[string][]subscriberEntry)
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// OnReconnect registers fn to run on SimulateReconnect
func (m *MockClient) OnReconnect(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// SimulateReconnect runs the registered reconnect callbacks
func (m *MockClient) SimulateReconnect() {
	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onReconnect...)
	m.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// GetState retrieves a mock state
func (m *MockClient) GetState(entityID string) (*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	if m.getStatesErr != nil {
		return nil, m.getStatesErr
	}

	state, ok := m.states[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}

	return state, nil
}

// GetAllStates retrieves all mock states
func (m *MockClient) GetAllStates() ([]*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	if m.getStatesErr != nil {
		return nil, m.getStatesErr
	}

	states := make([]*State, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}

	return states, nil
}

// SetGetStatesError makes GetState and GetAllStates fail with err (nil clears it)
func (m *MockClient) SetGetStatesError(err error) {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()
	m.getStatesErr = err
}

// SetCallServiceError makes CallService fail with err (nil clears it).
// Failed calls are not recorded.
func (m *MockClient) SetCallServiceError(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.callErr = err
}

// CallService records a service call
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.callsMu.Lock()
	if m.callErr != nil {
		err := m.callErr
		m.callsMu.Unlock()
		return err
	}
	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	m.callsMu.Unlock()

	if entityID, ok := data["entity_id"].(string); ok {
		m.updateStateFromServiceCall(entityID, domain, service, data)
	}

	return nil
}

// SubscribeStateChanges subscribes to state changes
func (m *MockClient) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	m.subsMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.subscribers[entityID] = append(m.subscribers[entityID], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	m.subsMu.Unlock()

	return &mockSubscription{
		entityID: entityID,
		subID:    subID,
		mock:     m,
	}, nil
}

// SubscriberCount returns how many handlers are registered for entityID
func (m *MockClient) SubscriberCount(entityID string) int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subscribers[entityID])
}

func (m *MockClient) unsubscribe(entityID string, subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	entries, ok := m.subscribers[entityID]
	if !ok {
		return nil
	}

	for i, entry := range entries {
		if entry.subID == subID {
			m.subscribers[entityID] = append(entries[:i:i], entries[i+1:]...)
			if len(m.subscribers[entityID]) == 0 {
				delete(m.subscribers, entityID)
			}
			break
		}
	}

	return nil
}

// SetState sets a mock state and notifies subscribers
func (m *MockClient) SetState(entityID string, stateValue string, attributes map[string]interface{}) {
	now := time.Now()
	newState := &State{
		EntityID:    entityID,
		State:       stateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}

	m.statesMu.Lock()
	oldState := m.states[entityID]
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.notifySubscribers(entityID, oldState, newState)
}

// RemoveState deletes an entity, as if HA no longer knew it
func (m *MockClient) RemoveState(entityID string) {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()
	delete(m.states, entityID)
}

// SimulateStateChange simulates a state change event, keeping attributes
func (m *MockClient) SimulateStateChange(entityID string, newStateValue string) {
	now := time.Now()

	m.statesMu.Lock()
	oldState := m.states[entityID]
	newState := &State{
		EntityID:    entityID,
		State:       newStateValue,
		Attributes:  make(map[string]interface{}),
		LastChanged: now,
		LastUpdated: now,
	}
	if oldState != nil {
		newState.Attributes = oldState.Attributes
	}
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.notifySubscribers(entityID, oldState, newState)
}

// GetServiceCalls returns all recorded service calls
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the service call history
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = make([]ServiceCall, 0)
}

// updateStateFromServiceCall mirrors what HA does for toggleable and input entities
func (m *MockClient) updateStateFromServiceCall(entityID, domain, service string, data map[string]interface{}) {
	m.statesMu.Lock()

	oldState := m.states[entityID]
	var newStateValue string
	attributes := make(map[string]interface{})
	if oldState != nil {
		newStateValue = oldState.State
		attributes = oldState.Attributes
	}

	switch domain {
	case "switch", "input_boolean", "climate", "valve":
		switch service {
		case "turn_on":
			newStateValue = "on"
		case "turn_off":
			newStateValue = "off"
		}
	case "input_number":
		if value, ok := data["value"].(float64); ok {
			newStateValue = fmt.Sprintf("%.2f", value)
		}
	case "input_select", "input_text":
		if value, ok := data["value"].(string); ok {
			newStateValue = value
		}
		if option, ok := data["option"].(string); ok {
			newStateValue = option
		}
	}

	now := time.Now()
	newState := &State{
		EntityID:    entityID,
		State:       newStateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.notifySubscribers(entityID, oldState, newState)
}

func (m *MockClient) notifySubscribers(entityID string, oldState, newState *State) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[entityID]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(entityID, oldState, newState)
	}
}
