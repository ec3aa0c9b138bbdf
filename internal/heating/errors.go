package heating

import "errors"

var (
	// ErrConfigInvalid means the room registry could not be built; the
	// controller must not start.
	ErrConfigInvalid = errors.New("invalid heating configuration")
	// ErrOverrideIndeterminate means a manual-override switch could not be
	// read. The room is treated as overridden.
	ErrOverrideIndeterminate = errors.New("manual override state indeterminate")
	// ErrUnknownMode means the heating mode entity holds an empty value
	ErrUnknownMode = errors.New("unknown heating mode")
)
