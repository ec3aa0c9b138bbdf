// Package testutil provides testing utilities for heating controller plugins.
// This package contains a mock Home Assistant WebSocket server and helpers
// for writing integration tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultEventDelay = 10 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) writeJSON(v interface{}) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(v)
}

// MockHAServer simulates a Home Assistant WebSocket server
type MockHAServer struct {
	server       *http.Server
	listener     net.Listener
	addr         string
	states       map[string]*EntityState
	statesMu     sync.RWMutex
	connections  []*connWrapper
	connsMu      sync.Mutex
	eventDelay   time.Duration // Simulates network latency
	token        string
	serviceCalls []ServiceCall // Track all service calls for verification
	failing      map[string]string
	callsMu      sync.Mutex // Protects serviceCalls and failing
	logger       *zap.Logger
}

// EntityState represents a Home Assistant entity state
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Message represents a WebSocket message
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   *Event          `json:"event,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo is the error payload of a failed result
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event represents a Home Assistant event
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

// StateChangedEvent represents a state_changed event
type StateChangedEvent struct {
	EntityID string       `json:"entity_id"`
	NewState *EntityState `json:"new_state"`
	OldState *EntityState `json:"old_state"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// CallServiceRequest represents a service call
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data,omitempty"`
}

type requestHeader struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// NewMockHAServer creates a new mock HA server. An empty addr picks a free
// local port when the server starts.
func NewMockHAServer(addr, token string) *MockHAServer {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	return &MockHAServer{
		addr:         addr,
		states:       make(map[string]*EntityState),
		connections:  make([]*connWrapper, 0),
		eventDelay:   defaultEventDelay,
		token:        token,
		serviceCalls: make([]ServiceCall, 0),
		failing:      make(map[string]string),
		logger:       zap.NewNop(),
	}
}

// SetLogger sets the logger for server diagnostics
func (s *MockHAServer) SetLogger(logger *zap.Logger) {
	s.logger = logger.Named("mock_ha")
}

// SetEventDelay sets the delay for broadcasting events
func (s *MockHAServer) SetEventDelay(delay time.Duration) {
	s.eventDelay = delay
}

// Start starts the mock server
func (s *MockHAServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(ln); err != http.ErrServerClosed {
			s.logger.Error("Mock HA server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the server listens on
func (s *MockHAServer) Addr() string {
	return s.addr
}

// URL returns the WebSocket URL clients should dial
func (s *MockHAServer) URL() string {
	return fmt.Sprintf("ws://%s/api/websocket", s.addr)
}

// Stop stops the mock server
func (s *MockHAServer) Stop() error {
	s.DropConnections()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// DropConnections closes every client connection, as a restarting Home
// Assistant would. The server keeps accepting new connections.
func (s *MockHAServer) DropConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
}

// ConnectionCount returns the number of authenticated connections
func (s *MockHAServer) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.connections)
}

// SetState sets a state and broadcasts change event
func (s *MockHAServer) SetState(entityID, state string, attributes map[string]interface{}) {
	s.statesMu.Lock()
	oldState := s.states[entityID]

	if attributes == nil && oldState != nil {
		attributes = oldState.Attributes
	}
	now := time.Now()
	newState := &EntityState{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}

	s.states[entityID] = newState
	s.statesMu.Unlock()

	if s.eventDelay > 0 {
		time.Sleep(s.eventDelay)
	}
	s.broadcastStateChange(entityID, oldState, newState)
}

// RemoveState deletes an entity without broadcasting
func (s *MockHAServer) RemoveState(entityID string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, entityID)
}

// GetState retrieves a state
func (s *MockHAServer) GetState(entityID string) *EntityState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()
	return s.states[entityID]
}

// FailServicesFor makes every service call on entityID fail with message.
// An empty message clears the failure.
func (s *MockHAServer) FailServicesFor(entityID, message string) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	if message == "" {
		delete(s.failing, entityID)
		return
	}
	s.failing[entityID] = message
}

// handleWebSocket handles WebSocket connections
func (s *MockHAServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	wrapper := &connWrapper{conn: conn}

	if err := wrapper.writeJSON(Message{Type: "auth_required"}); err != nil {
		return
	}

	var authMsg AuthMessage
	if err := conn.ReadJSON(&authMsg); err != nil {
		s.logger.Debug("Failed to read auth", zap.Error(err))
		return
	}

	if authMsg.AccessToken != s.token {
		wrapper.writeJSON(Message{Type: "auth_invalid"})
		return
	}

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w == wrapper {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
	}()

	wrapper.writeJSON(Message{Type: "auth_ok"})

	for {
		var msg json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Debug("Connection closed", zap.Error(err))
			return
		}

		var header requestHeader
		if err := json.Unmarshal(msg, &header); err != nil {
			continue
		}

		switch header.Type {
		case "subscribe_events", "unsubscribe_events":
			s.reply(wrapper, header.ID, nil)
		case "get_states":
			s.handleGetStates(wrapper, header.ID)
		case "call_service":
			s.handleCallService(wrapper, msg)
		default:
			s.replyError(wrapper, header.ID, "unknown_command", "Unknown command.")
		}
	}
}

func (s *MockHAServer) reply(wrapper *connWrapper, id int, result json.RawMessage) {
	success := true
	wrapper.writeJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
		Result:  result,
	})
}

func (s *MockHAServer) replyError(wrapper *connWrapper, id int, code, message string) {
	success := false
	wrapper.writeJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// handleGetStates handles get_states requests
func (s *MockHAServer) handleGetStates(wrapper *connWrapper, id int) {
	s.statesMu.RLock()
	states := make([]*EntityState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	s.statesMu.RUnlock()

	statesJSON, _ := json.Marshal(states)
	s.reply(wrapper, id, statesJSON)
}

// handleCallService records the call and mirrors its effect on entity state
func (s *MockHAServer) handleCallService(wrapper *connWrapper, msg json.RawMessage) {
	var req CallServiceRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	entityID, _ := req.ServiceData["entity_id"].(string)

	s.callsMu.Lock()
	failure, failed := s.failing[entityID]
	if !failed {
		s.serviceCalls = append(s.serviceCalls, ServiceCall{
			Timestamp:   time.Now(),
			Domain:      req.Domain,
			Service:     req.Service,
			ServiceData: req.ServiceData,
		})
	}
	s.callsMu.Unlock()

	if failed {
		s.replyError(wrapper, req.ID, "home_assistant_error", failure)
		return
	}

	if newState, ok := stateAfterService(req); ok && s.GetState(entityID) != nil {
		s.SetState(entityID, newState, nil)
	}

	s.reply(wrapper, req.ID, nil)
}

// stateAfterService returns the state an entity has after req, if the
// service changes it
func stateAfterService(req CallServiceRequest) (string, bool) {
	switch req.Domain {
	case "switch", "input_boolean", "climate", "valve":
		switch req.Service {
		case "turn_on":
			return "on", true
		case "turn_off":
			return "off", true
		}
	case "input_number":
		if value, ok := req.ServiceData["value"].(float64); ok {
			return fmt.Sprintf("%.2f", value), true
		}
	case "input_select":
		if option, ok := req.ServiceData["option"].(string); ok {
			return option, true
		}
	case "input_text":
		if value, ok := req.ServiceData["value"].(string); ok {
			return value, true
		}
	}
	return "", false
}

// broadcastStateChange broadcasts a state change event to all connections
func (s *MockHAServer) broadcastStateChange(entityID string, oldState, newState *EntityState) {
	eventData := StateChangedEvent{
		EntityID: entityID,
		NewState: newState,
		OldState: oldState,
	}

	eventDataJSON, _ := json.Marshal(eventData)

	msg := Message{
		Type: "event",
		Event: &Event{
			EventType: "state_changed",
			Data:      eventDataJSON,
			Origin:    "LOCAL",
			TimeFired: time.Now(),
		},
	}

	s.connsMu.Lock()
	wrappers := make([]*connWrapper, len(s.connections))
	copy(wrappers, s.connections)
	s.connsMu.Unlock()

	for _, wrapper := range wrappers {
		wrapper.writeJSON(msg)
	}
}

// GetServiceCalls returns all service calls since last clear
func (s *MockHAServer) GetServiceCalls() []ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	calls := make([]ServiceCall, len(s.serviceCalls))
	copy(calls, s.serviceCalls)
	return calls
}

// ClearServiceCalls resets the service call log
func (s *MockHAServer) ClearServiceCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.serviceCalls = nil
}

// FindServiceCall finds the most recent service call matching criteria.
// An empty entityID matches any entity.
func (s *MockHAServer) FindServiceCall(domain, service string, entityID string) *ServiceCall {
	calls := s.GetServiceCalls()
	if entityID == "" {
		filtered := FilterServiceCalls(calls, domain, service)
		if len(filtered) == 0 {
			return nil
		}
		return &filtered[len(filtered)-1]
	}
	return FindServiceCallWithEntityID(calls, domain, service, entityID)
}

// CountServiceCalls counts service calls matching criteria
func (s *MockHAServer) CountServiceCalls(domain, service string) int {
	return len(FilterServiceCalls(s.GetServiceCalls(), domain, service))
}
