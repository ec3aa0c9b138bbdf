package heating

import (
	"fmt"
	"strings"
)

// Mode is the global heating operating mode. Only off and vacation change
// how rooms are driven; any other value (on, auto, eco, ...) means normal
// day/night control and is kept as read for logs and shadow state.
type Mode string

const (
	ModeOn       Mode = "on"
	ModeOff      Mode = "off"
	ModeVacation Mode = "vacation"
)

// ParseMode normalizes a raw mode value. Matching is case-insensitive and
// only an empty value is rejected.
func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if m == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
	return m, nil
}

// Automatic reports whether rooms follow their day/night schedule
func (m Mode) Automatic() bool {
	return m != ModeOff && m != ModeVacation
}

func (m Mode) String() string {
	return string(m)
}
