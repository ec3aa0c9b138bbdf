package state

import (
	"fmt"

	"heatingcontrol/internal/ha"

	"go.uber.org/zap"
)

// Store reads entity values straight from Home Assistant. Nothing is cached:
// every read reflects HA's state at the time of the call.
type Store struct {
	client ha.HAClient
	logger *zap.Logger
}

// NewStore creates a Store backed by client
func NewStore(client ha.HAClient, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Snapshot fetches every entity state in one request. A pass reads all of
// its inputs from one snapshot so they are mutually consistent.
func (s *Store) Snapshot() (*Snapshot, error) {
	states, err := s.client.GetAllStates()
	if err != nil {
		return nil, fmt.Errorf("failed to get states: %w", err)
	}

	values := make(map[string]string, len(states))
	for _, st := range states {
		if st == nil {
			continue
		}
		values[st.EntityID] = st.State
	}

	s.logger.Debug("Fetched state snapshot", zap.Int("entities", len(values)))
	return &Snapshot{values: values}, nil
}

// Snapshot is an immutable view of HA entity states taken at one instant
type Snapshot struct {
	values map[string]string
}

// NewSnapshot builds a Snapshot from raw entity values
func NewSnapshot(values map[string]string) *Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Snapshot{values: copied}
}

// ReadValue returns the entity's state as of the snapshot
func (s *Snapshot) ReadValue(entityID string) (string, error) {
	value, ok := s.values[entityID]
	if !ok {
		return "", fmt.Errorf("%w: %s not found", ErrUnreadable, entityID)
	}
	if err := checkUsable(entityID, value); err != nil {
		return "", err
	}
	return value, nil
}

// Has reports whether the snapshot contains entityID, usable or not
func (s *Snapshot) Has(entityID string) bool {
	_, ok := s.values[entityID]
	return ok
}
