package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"heatingcontrol/internal/heating"

	"gopkg.in/yaml.v3"
)

// HeatingConfigFile is the file name the loader reads from the config dir
const HeatingConfigFile = "heating_config.yaml"

// RoomConfig is one entry of the rooms list
type RoomConfig struct {
	Name             string      `yaml:"room_name"`
	Sensor           string      `yaml:"sensor"`
	TemperatureDay   string      `yaml:"temperature_day"`
	TemperatureNight string      `yaml:"temperature_night"`
	HeatingValves    interface{} `yaml:"heating_valves"` // string or []string
	ManualMode       string      `yaml:"manual_mode,omitempty"`
}

// GetHeatingValves returns the room's valves in configured order
func (r *RoomConfig) GetHeatingValves() []string {
	return interfaceToStringSlice(r.HeatingValves)
}

// HeatingSection holds the global entities and the room list
type HeatingSection struct {
	HeatingMode         string       `yaml:"heating_mode"`
	DayNight            string       `yaml:"day_night"`
	SomebodyHome        string       `yaml:"somebody_home"`
	TemperatureVacation string       `yaml:"temperature_vacation"`
	Hysteresis          *float64     `yaml:"hysteresis,omitempty"`
	Rooms               []RoomConfig `yaml:"rooms"`
}

// HeatingConfig represents the heating_config.yaml structure
type HeatingConfig struct {
	Heating HeatingSection `yaml:"heating"`
}

// LoadHeatingConfig reads and validates a heating config file
func LoadHeatingConfig(path string) (*HeatingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heating config: %w", err)
	}
	return ParseHeatingConfig(data)
}

// ParseHeatingConfig decodes and validates heating config YAML
func ParseHeatingConfig(data []byte) (*HeatingConfig, error) {
	var cfg HeatingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse heating config: %w", heating.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config's shape. Every problem is reported, joined
// under heating.ErrConfigInvalid.
func (c *HeatingConfig) Validate() error {
	var errs []error
	h := c.Heating

	requireEntity := func(field, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
			return
		}
		if !isEntityID(value) {
			errs = append(errs, fmt.Errorf("%s: %q is not an entity id", field, value))
		}
	}

	requireEntity("heating_mode", h.HeatingMode)
	requireEntity("day_night", h.DayNight)
	requireEntity("temperature_vacation", h.TemperatureVacation)
	if h.SomebodyHome != "" {
		requireEntity("somebody_home", h.SomebodyHome)
	}

	if h.Hysteresis != nil && (*h.Hysteresis < 0 || math.IsNaN(*h.Hysteresis) || math.IsInf(*h.Hysteresis, 0)) {
		errs = append(errs, fmt.Errorf("hysteresis must be a non-negative number, got %v", *h.Hysteresis))
	}

	if len(h.Rooms) == 0 {
		errs = append(errs, errors.New("rooms: at least one room is required"))
	}

	for i, room := range h.Rooms {
		prefix := fmt.Sprintf("rooms[%d]", i)
		if room.Name != "" {
			prefix = fmt.Sprintf("rooms[%d] (%s)", i, room.Name)
		} else {
			errs = append(errs, fmt.Errorf("%s: room_name is required", prefix))
		}
		requireEntity(prefix+".sensor", room.Sensor)
		requireEntity(prefix+".temperature_day", room.TemperatureDay)
		requireEntity(prefix+".temperature_night", room.TemperatureNight)
		if room.ManualMode != "" {
			requireEntity(prefix+".manual_mode", room.ManualMode)
		}

		valves := room.GetHeatingValves()
		if len(valves) == 0 {
			errs = append(errs, fmt.Errorf("%s.heating_valves: at least one valve is required", prefix))
		}
		for _, v := range valves {
			requireEntity(prefix+".heating_valves", v)
		}
		errs = append(errs, invalidListItems(prefix+".heating_valves", room.HeatingValves)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", heating.ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}

// isEntityID reports whether s looks like domain.object_id
func isEntityID(s string) bool {
	domain, object, ok := strings.Cut(s, ".")
	return ok && domain != "" && object != "" && !strings.ContainsAny(s, " \t")
}

// Rooms converts the room list to engine rooms, in file order
func (c *HeatingConfig) Rooms() []heating.Room {
	rooms := make([]heating.Room, 0, len(c.Heating.Rooms))
	for i := range c.Heating.Rooms {
		rc := &c.Heating.Rooms[i]
		rooms = append(rooms, heating.Room{
			Name:             rc.Name,
			SensorID:         rc.Sensor,
			DayTargetID:      rc.TemperatureDay,
			NightTargetID:    rc.TemperatureNight,
			ValveIDs:         rc.GetHeatingValves(),
			ManualOverrideID: rc.ManualMode,
		})
	}
	return rooms
}

// Registry builds the immutable room registry
func (c *HeatingConfig) Registry() (*heating.Registry, error) {
	return heating.NewRegistry(c.Rooms())
}

// Globals returns the global control entity ids
func (c *HeatingConfig) Globals() heating.GlobalEntities {
	return heating.GlobalEntities{
		Mode:                c.Heating.HeatingMode,
		DayNight:            c.Heating.DayNight,
		VacationTemperature: c.Heating.TemperatureVacation,
		SomebodyHome:        c.Heating.SomebodyHome,
	}
}

// HysteresisValue returns the configured dead band or the default
func (c *HeatingConfig) HysteresisValue() float64 {
	if c.Heating.Hysteresis == nil {
		return heating.DefaultHysteresis
	}
	return *c.Heating.Hysteresis
}

// Entities returns every entity id the config references, without duplicates
func (c *HeatingConfig) Entities() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range c.Globals().Entities() {
		add(id)
	}
	for _, room := range c.Rooms() {
		for _, id := range room.Entities() {
			add(id)
		}
		for _, v := range room.ValveIDs {
			add(v)
		}
	}
	return ids
}

// ValidateEntities checks that every referenced entity exists. exists is
// usually backed by a state snapshot.
func (c *HeatingConfig) ValidateEntities(exists func(entityID string) bool) error {
	var missing []string
	for _, id := range c.Entities() {
		if !exists(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown entities: %s", heating.ErrConfigInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// invalidListItems reports the entries of a string-or-list field that
// interfaceToStringSlice would drop
func invalidListItems(field string, val interface{}) []error {
	switch v := val.(type) {
	case nil, string, []string:
		return nil
	case []interface{}:
		var errs []error
		for i, item := range v {
			str, ok := item.(string)
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%s[%d]: %v is not an entity id", field, i, item))
			case str == "":
				errs = append(errs, fmt.Errorf("%s[%d]: empty entry", field, i))
			}
		}
		return errs
	default:
		return []error{fmt.Errorf("%s: expected an entity id or a list of entity ids, got %v", field, val)}
	}
}

// interfaceToStringSlice converts an interface{} that can be string, []string, or nil to []string
func interfaceToStringSlice(val interface{}) []string {
	if val == nil {
		return []string{}
	}

	switch v := val.(type) {
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				result = append(result, str)
			}
		}
		return result
	case []string:
		return v
	default:
		return []string{}
	}
}
