package heating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		target  float64
		current float64
		want    Action
	}{
		{"well below target", 21.0, 18.0, TurnOn},
		{"just past the band", 21.0, 20.69, TurnOn},
		{"band upper edge", 21.0, 20.7, NoAction},
		{"inside band", 21.0, 20.9, NoAction},
		{"at target", 21.0, 21.0, TurnOff},
		{"above target", 21.0, 22.5, TurnOff},
		{"negative temperatures", -2.0, -5.0, TurnOn},
		{"unknown current", 21.0, math.NaN(), NoAction},
		{"infinite current", 21.0, math.Inf(-1), NoAction},
		{"unknown target", math.NaN(), 20.0, NoAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.target, tt.current, DefaultHysteresis))
		})
	}
}

func TestDecide_Properties(t *testing.T) {
	// sweep a grid of temperatures in tenths of a degree
	for c := 150; c <= 250; c += 3 {
		current := float64(c) / 10
		for d := -30; d <= 30; d++ {
			target := current + float64(d)/10
			got := Decide(target, current, DefaultHysteresis)

			switch {
			case target <= current:
				assert.Equal(t, TurnOff, got, "target=%v current=%v", target, current)
			case target > current+DefaultHysteresis:
				assert.Equal(t, TurnOn, got, "target=%v current=%v", target, current)
			default:
				assert.Equal(t, NoAction, got, "target=%v current=%v", target, current)
			}

			assert.Equal(t, got, Decide(target, current, DefaultHysteresis), "decide must be pure")
		}
	}
}

func TestDecide_CustomHysteresis(t *testing.T) {
	assert.Equal(t, NoAction, Decide(21.0, 20.5, 1.0))
	assert.Equal(t, TurnOn, Decide(21.0, 19.5, 1.0))
	assert.Equal(t, TurnOn, Decide(21.0, 20.9, 0))
	assert.Equal(t, TurnOff, Decide(21.0, 21.0, 0))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "turn_on", TurnOn.String())
	assert.Equal(t, "turn_off", TurnOff.String())
	assert.Equal(t, "none", NoAction.String())
}
