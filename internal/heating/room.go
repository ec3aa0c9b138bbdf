package heating

import (
	"errors"
	"fmt"
	"strings"
)

// Room is one independently controlled heating zone
type Room struct {
	Name          string
	SensorID      string
	DayTargetID   string
	NightTargetID string
	// ValveIDs are commanded in this order.
	ValveIDs []string
	// ManualOverrideID is optional. Empty means the room is always under
	// automatic control.
	ManualOverrideID string
}

// HasValve reports whether entityID is one of the room's valves
func (r Room) HasValve(entityID string) bool {
	for _, v := range r.ValveIDs {
		if v == entityID {
			return true
		}
	}
	return false
}

// Entities returns every entity the room reads from, valves excluded
func (r Room) Entities() []string {
	ids := []string{r.SensorID, r.DayTargetID}
	if r.NightTargetID != r.DayTargetID {
		ids = append(ids, r.NightTargetID)
	}
	if r.ManualOverrideID != "" {
		ids = append(ids, r.ManualOverrideID)
	}
	return ids
}

func (r Room) clone() Room {
	r.ValveIDs = append([]string(nil), r.ValveIDs...)
	return r
}

type registration struct {
	kind TriggerKind
	room int
}

// Registry is the immutable, ordered set of configured rooms. It is built
// once at startup and is safe for concurrent use.
type Registry struct {
	rooms []Room
	index map[string]registration
}

// NewRegistry validates rooms and indexes their entities by field. An entity
// may serve a single field of a single room, except that a room may use one
// entity for both its day and night target. Manual-override switches are not
// indexed and may be shared.
func NewRegistry(rooms []Room) (*Registry, error) {
	reg := &Registry{
		rooms: make([]Room, 0, len(rooms)),
		index: make(map[string]registration),
	}

	var errs []error
	add := func(entityID string, kind TriggerKind, room int) {
		prev, ok := reg.index[entityID]
		if !ok {
			reg.index[entityID] = registration{kind: kind, room: room}
			return
		}
		if prev.room == room && prev.kind == TriggerSchedule && kind == TriggerSchedule {
			return
		}
		errs = append(errs, fmt.Errorf("room %q: entity %s already used as %s of room %q",
			rooms[room].Name, entityID, prev.kind, rooms[prev.room].Name))
	}

	for i, room := range rooms {
		if err := validateRoom(room); err != nil {
			errs = append(errs, err)
			continue
		}
		add(room.SensorID, TriggerSensor, i)
		add(room.DayTargetID, TriggerSchedule, i)
		add(room.NightTargetID, TriggerSchedule, i)
		for _, v := range room.ValveIDs {
			add(v, TriggerValve, i)
		}
		reg.rooms = append(reg.rooms, room.clone())
	}

	if len(rooms) == 0 {
		errs = append(errs, errors.New("no rooms configured"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}
	return reg, nil
}

func validateRoom(room Room) error {
	var missing []string
	if strings.TrimSpace(room.Name) == "" {
		missing = append(missing, "name")
	}
	if room.SensorID == "" {
		missing = append(missing, "sensor")
	}
	if room.DayTargetID == "" {
		missing = append(missing, "day target")
	}
	if room.NightTargetID == "" {
		missing = append(missing, "night target")
	}
	if len(room.ValveIDs) == 0 {
		missing = append(missing, "valves")
	}
	for _, v := range room.ValveIDs {
		if v == "" {
			missing = append(missing, "valve id")
			break
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("room %q: missing %s", room.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Rooms returns a copy of the rooms in configuration order
func (r *Registry) Rooms() []Room {
	rooms := make([]Room, len(r.rooms))
	for i, room := range r.rooms {
		rooms[i] = room.clone()
	}
	return rooms
}

// Len returns the number of rooms
func (r *Registry) Len() int {
	return len(r.rooms)
}

// TriggerFor classifies entityID by the field it was registered under.
// The second result is false for entities no room refers to.
func (r *Registry) TriggerFor(entityID string) (Trigger, bool) {
	reg, ok := r.index[entityID]
	if !ok {
		return Trigger{}, false
	}
	return Trigger{Kind: reg.kind, EntityID: entityID}, true
}
