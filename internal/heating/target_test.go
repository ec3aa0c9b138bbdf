package heating

import (
	"testing"

	"heatingcontrol/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGlobalState(t *testing.T) {
	values := houseState()
	values["input_select.heating_mode"] = "Vacation"
	values["input_boolean.day"] = "off"

	gs, err := ReadGlobalState(snapshot(values), testGlobals)
	require.NoError(t, err)
	assert.Equal(t, ModeVacation, gs.Mode)
	assert.False(t, gs.Day)
	assert.NoError(t, gs.DayErr)
	assert.Equal(t, 16.0, gs.VacationTemperature)
	assert.True(t, gs.SomebodyHome)
}

func TestReadGlobalState_Failures(t *testing.T) {
	t.Run("mode unreadable aborts", func(t *testing.T) {
		values := houseState()
		values["input_select.heating_mode"] = "unavailable"
		_, err := ReadGlobalState(snapshot(values), testGlobals)
		assert.ErrorIs(t, err, state.ErrUnreadable)
	})

	t.Run("missing mode aborts", func(t *testing.T) {
		values := houseState()
		delete(values, "input_select.heating_mode")
		_, err := ReadGlobalState(snapshot(values), testGlobals)
		assert.ErrorIs(t, err, state.ErrUnreadable)
	})

	t.Run("other modes are kept as read", func(t *testing.T) {
		values := houseState()
		values["input_select.heating_mode"] = "Eco"
		gs, err := ReadGlobalState(snapshot(values), testGlobals)
		require.NoError(t, err)
		assert.Equal(t, Mode("eco"), gs.Mode)
		assert.True(t, gs.Mode.Automatic())
	})

	t.Run("other fields fail individually", func(t *testing.T) {
		values := houseState()
		delete(values, "input_boolean.day")
		values["input_number.vacation_temperature"] = "warm"
		delete(values, "input_boolean.somebody_home")

		gs, err := ReadGlobalState(snapshot(values), testGlobals)
		require.NoError(t, err)
		assert.Equal(t, ModeOn, gs.Mode)
		assert.ErrorIs(t, gs.DayErr, state.ErrUnreadable)
		assert.ErrorIs(t, gs.VacationErr, state.ErrNotNumeric)
		assert.ErrorIs(t, gs.SomebodyHomeErr, state.ErrUnreadable)
	})

	t.Run("somebody home is optional", func(t *testing.T) {
		globals := testGlobals
		globals.SomebodyHome = ""
		gs, err := ReadGlobalState(snapshot(houseState()), globals)
		require.NoError(t, err)
		assert.NoError(t, gs.SomebodyHomeErr)
	})
}

func TestResolveTarget(t *testing.T) {
	r := snapshot(houseState())

	t.Run("day", func(t *testing.T) {
		target, err := ResolveTarget(bedroom(), GlobalState{Mode: ModeOn, Day: true}, r)
		require.NoError(t, err)
		assert.Equal(t, 21.0, target)
	})

	t.Run("night", func(t *testing.T) {
		target, err := ResolveTarget(bedroom(), GlobalState{Mode: ModeOn, Day: false}, r)
		require.NoError(t, err)
		assert.Equal(t, 18.0, target)
	})

	t.Run("vacation ignores day and schedule", func(t *testing.T) {
		for _, day := range []bool{true, false} {
			for _, room := range []Room{bedroom(), kitchen(), livingRoom()} {
				gs := GlobalState{Mode: ModeVacation, Day: day, VacationTemperature: 16.0}
				target, err := ResolveTarget(room, gs, r)
				require.NoError(t, err)
				assert.Equal(t, 16.0, target, room.Name)
			}
		}
	})

	t.Run("vacation with unreadable schedule", func(t *testing.T) {
		broken := kitchen()
		broken.DayTargetID = "input_number.missing"
		gs := GlobalState{Mode: ModeVacation, Day: true, VacationTemperature: 15.5}
		target, err := ResolveTarget(broken, gs, r)
		require.NoError(t, err)
		assert.Equal(t, 15.5, target)
	})

	t.Run("vacation temperature unreadable", func(t *testing.T) {
		gs := GlobalState{Mode: ModeVacation, VacationErr: state.ErrNotNumeric}
		_, err := ResolveTarget(bedroom(), gs, r)
		assert.ErrorIs(t, err, state.ErrNotNumeric)
	})

	t.Run("day/night unreadable", func(t *testing.T) {
		gs := GlobalState{Mode: ModeOn, DayErr: state.ErrUnreadable}
		_, err := ResolveTarget(bedroom(), gs, r)
		assert.ErrorIs(t, err, state.ErrUnreadable)
	})

	t.Run("target not numeric", func(t *testing.T) {
		values := houseState()
		values["input_number.bedroom_day"] = "comfortable"
		_, err := ResolveTarget(bedroom(), GlobalState{Mode: ModeOn, Day: true}, snapshot(values))
		assert.ErrorIs(t, err, state.ErrNotNumeric)
	})
}

func TestIsOverridden(t *testing.T) {
	values := houseState()

	t.Run("no override entity", func(t *testing.T) {
		overridden, err := IsOverridden(kitchen(), snapshot(values))
		require.NoError(t, err)
		assert.False(t, overridden)
	})

	tests := []struct {
		value string
		want  bool
	}{
		{"on", true},
		{"On", true},
		{"off", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			values["input_boolean.bedroom_manual"] = tt.value
			overridden, err := IsOverridden(bedroom(), snapshot(values))
			require.NoError(t, err)
			assert.Equal(t, tt.want, overridden)
		})
	}

	t.Run("unreadable counts as overridden", func(t *testing.T) {
		values["input_boolean.bedroom_manual"] = "unavailable"
		overridden, err := IsOverridden(bedroom(), snapshot(values))
		assert.True(t, overridden)
		assert.ErrorIs(t, err, ErrOverrideIndeterminate)
		assert.ErrorIs(t, err, state.ErrUnreadable)
	})
}
