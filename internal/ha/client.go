package ha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	requestTimeout      = 10 * time.Second
	reconnectMinBackoff = time.Second
	reconnectMaxBackoff = 30 * time.Second
)

var (
	// ErrNotConnected is returned for requests made while the socket is down.
	ErrNotConnected = errors.New("not connected")
	// ErrEntityNotFound is returned by GetState when HA has no such entity.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrTimeout is returned when HA does not answer a request in time.
	ErrTimeout = errors.New("timeout waiting for response")
)

// HAClient defines the interface for Home Assistant WebSocket client
type HAClient interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	GetState(entityID string) (*State, error)
	GetAllStates() ([]*State, error)
	CallService(domain, service string, data map[string]interface{}) error
	SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error)
	// OnReconnect registers a callback run after the connection is
	// re-established. Events that fired while disconnected are lost.
	OnReconnect(fn func())
}

type subscriberEntry struct {
	subID   int
	handler StateChangeHandler
}

// Client implements HAClient over the Home Assistant WebSocket API
type Client struct {
	url         string
	token       string
	logger      *zap.Logger
	conn        *websocket.Conn
	connected   bool
	connMu      sync.RWMutex
	msgID       int
	msgIDMu     sync.Mutex
	pending     map[int]chan Message
	pendingMu   sync.Mutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	ctx         context.Context
	cancel      context.CancelFunc
	reconnect   bool
	onReconnect []func()
	hooksMu     sync.Mutex
	writeMu     sync.Mutex
}

// NewClient creates a new Home Assistant WebSocket client
func NewClient(url, token string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:         url,
		token:       token,
		logger:      logger.Named("ha"),
		pending:     make(map[int]chan Message),
		subscribers: make(map[string][]subscriberEntry),
		ctx:         ctx,
		cancel:      cancel,
		reconnect:   true,
	}
}

func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Connect establishes WebSocket connection and authenticates
func (c *Client) Connect() error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, err := c.dialAndAuthenticate()
	if err != nil {
		c.connMu.Unlock()
		return err
	}

	c.conn = conn
	c.resetContextLocked()
	c.connected = true
	c.reconnect = true
	c.logger.Info("Connected to Home Assistant", zap.String("url", c.url))

	go c.receiveMessages(c.ctx, conn)

	// subscribeToStateChanges goes through sendMessage, which takes connMu
	c.connMu.Unlock()

	if err := c.subscribeToStateChanges(); err != nil {
		c.logger.Warn("Failed to subscribe to state changes", zap.Error(err))
	}

	return nil
}

func (c *Client) dialAndAuthenticate() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	var authRequired Message
	if err := conn.ReadJSON(&authRequired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read auth_required: %w", err)
	}
	if authRequired.Type != "auth_required" {
		conn.Close()
		return nil, fmt.Errorf("expected auth_required, got %s", authRequired.Type)
	}

	if err := conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send auth: %w", err)
	}

	var authResponse Message
	if err := conn.ReadJSON(&authResponse); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	switch authResponse.Type {
	case "auth_ok":
		return conn, nil
	case "auth_invalid":
		conn.Close()
		return nil, fmt.Errorf("authentication failed: invalid token")
	default:
		conn.Close()
		return nil, fmt.Errorf("expected auth_ok, got %s", authResponse.Type)
	}
}

// Disconnect closes the WebSocket connection and stops any reconnect loop
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.subsMu.Lock()
	c.subscribers = make(map[string][]subscriberEntry)
	c.subsMu.Unlock()

	c.logger.Info("Disconnected from Home Assistant")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// OnReconnect registers fn to run after every successful reconnect
func (c *Client) OnReconnect(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onReconnect = append(c.onReconnect, fn)
}

func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// sendMessage writes a request and waits for the response with the same id
func (c *Client) sendMessage(msgID int, msg interface{}) (*Message, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, ErrNotConnected
	}
	conn := c.conn
	ctx := c.ctx
	c.connMu.RUnlock()

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msgID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("HA error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request %d failed", msgID)
		}
		return &resp, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, fmt.Errorf("client disconnected: %w", ErrNotConnected)
	}
}

// receiveMessages reads from conn until it fails or ctx is cancelled
func (c *Client) receiveMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect(conn)
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		if msg.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var eventData StateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &eventData); err != nil {
		c.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}

	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers[eventData.EntityID]...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(eventData.EntityID, eventData.OldState, eventData.NewState)
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		// a newer connection already replaced this one
		c.connMu.Unlock()
		return
	}
	c.connected = false
	conn.Close()
	reconnect := c.reconnect
	ctx := c.ctx
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if reconnect {
		go c.attemptReconnect(ctx)
	}
}

// attemptReconnect retries Connect with exponential backoff until it
// succeeds or ctx is cancelled by Disconnect.
func (c *Client) attemptReconnect(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectMinBackoff
	bo.MaxInterval = reconnectMaxBackoff
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		c.logger.Info("Attempting to reconnect...")
		err := c.Connect()
		if err != nil && !c.shouldReconnect() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		c.logger.Error("Reconnection failed", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		c.logger.Info("Reconnect abandoned", zap.Error(err))
		return
	}

	c.logger.Info("Reconnected successfully")

	c.hooksMu.Lock()
	hooks := append([]func(){}, c.onReconnect...)
	c.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) shouldReconnect() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.reconnect
}

func (c *Client) subscribeToStateChanges() error {
	msgID := c.nextMsgID()
	_, err := c.sendMessage(msgID, &SubscribeEventsRequest{
		ID:        msgID,
		Type:      "subscribe_events",
		EventType: "state_changed",
	})
	return err
}

// GetState retrieves the state of an entity
func (c *Client) GetState(entityID string) (*State, error) {
	states, err := c.GetAllStates()
	if err != nil {
		return nil, err
	}

	for _, state := range states {
		if state.EntityID == entityID {
			return state, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
}

// GetAllStates retrieves all entity states
func (c *Client) GetAllStates() ([]*State, error) {
	msgID := c.nextMsgID()
	resp, err := c.sendMessage(msgID, &GetStatesRequest{
		ID:   msgID,
		Type: "get_states",
	})
	if err != nil {
		return nil, err
	}

	var states []*State
	if err := json.Unmarshal(resp.Result, &states); err != nil {
		return nil, fmt.Errorf("failed to unmarshal states: %w", err)
	}

	return states, nil
}

// CallService calls a Home Assistant service
func (c *Client) CallService(domain, service string, data map[string]interface{}) error {
	msgID := c.nextMsgID()
	_, err := c.sendMessage(msgID, &CallServiceRequest{
		ID:          msgID,
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	})
	if err != nil {
		return fmt.Errorf("failed to call %s.%s: %w", domain, service, err)
	}
	return nil
}

// SubscribeStateChanges registers handler for state changes of entityID
func (c *Client) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	c.subsMu.Lock()
	subID := c.nextSubID
	c.nextSubID++
	c.subscribers[entityID] = append(c.subscribers[entityID], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	c.subsMu.Unlock()

	return &subscription{
		entityID: entityID,
		subID:    subID,
		client:   c,
	}, nil
}

func (c *Client) unsubscribe(entityID string, subID int) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	entries, ok := c.subscribers[entityID]
	if !ok {
		return nil
	}

	for i, entry := range entries {
		if entry.subID == subID {
			c.subscribers[entityID] = append(entries[:i:i], entries[i+1:]...)
			if len(c.subscribers[entityID]) == 0 {
				delete(c.subscribers, entityID)
			}
			break
		}
	}

	return nil
}
