package state

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Home Assistant placeholders for entities without a usable value
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

var (
	// ErrUnreadable is returned when an entity is missing or has no usable value
	ErrUnreadable = errors.New("entity unreadable")
	// ErrNotNumeric is returned when a value expected to be numeric fails to parse
	ErrNotNumeric = errors.New("value is not numeric")
)

// Reader provides the current raw value of any Home Assistant entity
type Reader interface {
	ReadValue(entityID string) (string, error)
}

// ReaderFunc adapts a plain function to Reader
type ReaderFunc func(entityID string) (string, error)

// ReadValue calls f(entityID)
func (f ReaderFunc) ReadValue(entityID string) (string, error) {
	return f(entityID)
}

// Bool reads entityID and reports whether it is "on" (case-insensitive)
func Bool(r Reader, entityID string) (bool, error) {
	value, err := r.ReadValue(entityID)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(value), "on"), nil
}

// Number reads entityID as a finite float
func Number(r Reader, entityID string) (float64, error) {
	value, err := r.ReadValue(entityID)
	if err != nil {
		return 0, err
	}
	return ParseNumber(entityID, value)
}

// ParseNumber parses a raw state value, rejecting NaN and infinities
func ParseNumber(entityID, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s has value %q", ErrNotNumeric, entityID, value)
	}
	return f, nil
}

// checkUsable rejects the placeholder states HA reports for dead entities
func checkUsable(entityID, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", StateUnknown, StateUnavailable:
		return fmt.Errorf("%w: %s is %q", ErrUnreadable, entityID, value)
	}
	return nil
}
