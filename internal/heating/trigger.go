package heating

import "fmt"

// TriggerKind says which room field a trigger entity is matched against
type TriggerKind int

const (
	// TriggerAll requests a full re-evaluation of every room.
	TriggerAll TriggerKind = iota
	TriggerSensor
	TriggerSchedule
	TriggerValve
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerAll:
		return "all"
	case TriggerSensor:
		return "sensor"
	case TriggerSchedule:
		return "schedule"
	case TriggerValve:
		return "valve"
	default:
		return fmt.Sprintf("TriggerKind(%d)", int(k))
	}
}

// Trigger identifies the change that caused an evaluation pass
type Trigger struct {
	Kind     TriggerKind
	EntityID string
}

// FullEvaluation is the trigger for re-evaluating every room
var FullEvaluation = Trigger{Kind: TriggerAll}

// SensorChanged returns the trigger for a temperature sensor update
func SensorChanged(entityID string) Trigger {
	return Trigger{Kind: TriggerSensor, EntityID: entityID}
}

// ScheduleChanged returns the trigger for a day or night target update
func ScheduleChanged(entityID string) Trigger {
	return Trigger{Kind: TriggerSchedule, EntityID: entityID}
}

// ValveChanged returns the trigger for a valve state update
func ValveChanged(entityID string) Trigger {
	return Trigger{Kind: TriggerValve, EntityID: entityID}
}

func (t Trigger) String() string {
	if t.Kind == TriggerAll {
		return "all"
	}
	return t.Kind.String() + ":" + t.EntityID
}

// SelectRooms returns the rooms a trigger affects, in configuration order.
// An entity only matches the field kind named by the trigger.
func SelectRooms(rooms []Room, trigger Trigger) []Room {
	if trigger.Kind == TriggerAll {
		return append([]Room(nil), rooms...)
	}

	var selected []Room
	for _, room := range rooms {
		if matches(room, trigger) {
			selected = append(selected, room)
		}
	}
	return selected
}

func matches(room Room, trigger Trigger) bool {
	switch trigger.Kind {
	case TriggerSensor:
		return room.SensorID == trigger.EntityID
	case TriggerSchedule:
		return room.DayTargetID == trigger.EntityID || room.NightTargetID == trigger.EntityID
	case TriggerValve:
		return room.HasValve(trigger.EntityID)
	default:
		return false
	}
}
