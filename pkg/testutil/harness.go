// Package testutil provides testing utilities for heating controller plugins.
// This file provides a TestEnv for integration testing plugins against a
// mock Home Assistant server.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"heatingcontrol/internal/config"
	"heatingcontrol/internal/ha"
	"heatingcontrol/internal/metrics"
	_ "heatingcontrol/internal/plugins/heating" // registers the heating plugin
	"heatingcontrol/internal/shadowstate"
	pkgha "heatingcontrol/pkg/ha"
	"heatingcontrol/pkg/plugin"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultHeatingConfig describes the house seeded by InitializeHeatingStates
const DefaultHeatingConfig = `
heating:
  heating_mode: input_select.heating_mode
  day_night: input_boolean.heating_day
  somebody_home: input_boolean.somebody_home
  temperature_vacation: input_number.heating_vacation_temperature
  rooms:
    - room_name: Bedroom
      sensor: sensor.bedroom_temperature
      temperature_day: input_number.bedroom_temperature_day
      temperature_night: input_number.bedroom_temperature_night
      heating_valves: switch.bedroom_valve
      manual_mode: input_boolean.bedroom_manual_heating
    - room_name: Kitchen
      sensor: sensor.kitchen_temperature
      temperature_day: input_number.kitchen_temperature_day
      temperature_night: input_number.kitchen_temperature_night
      heating_valves:
        - switch.kitchen_valve_window
        - switch.kitchen_valve_door
    - room_name: Living Room
      sensor: sensor.living_room_temperature
      temperature_day: input_number.living_room_temperature_day
      temperature_night: input_number.living_room_temperature_night
      heating_valves: switch.living_room_valve
`

// DefaultHeatingStates is a daytime house with heating on where every room
// sits inside its dead band
var DefaultHeatingStates = map[string]string{
	"input_select.heating_mode":                 "on",
	"input_boolean.heating_day":                 "on",
	"input_boolean.somebody_home":               "on",
	"input_number.heating_vacation_temperature": "16.0",

	"sensor.bedroom_temperature":                 "20.8",
	"input_number.bedroom_temperature_day":       "21.0",
	"input_number.bedroom_temperature_night":     "18.0",
	"input_boolean.bedroom_manual_heating":       "off",
	"switch.bedroom_valve":                       "off",
	"sensor.kitchen_temperature":                 "19.9",
	"input_number.kitchen_temperature_day":       "20.0",
	"input_number.kitchen_temperature_night":     "17.0",
	"switch.kitchen_valve_window":                "off",
	"switch.kitchen_valve_door":                  "off",
	"sensor.living_room_temperature":             "21.3",
	"input_number.living_room_temperature_day":   "21.5",
	"input_number.living_room_temperature_night": "18.5",
	"switch.living_room_valve":                   "off",
}

// TestEnv provides a complete test environment for plugin integration tests.
type TestEnv struct {
	Server   *MockHAServer
	HAClient pkgha.Client
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Tracker  *shadowstate.Tracker
	Plugins  []plugin.Plugin

	internalClient *ha.Client
}

// NewTestEnv starts a mock HA server on a free local port and connects a
// real client to it.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("test_token")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
func NewTestEnv(token string) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	server := NewMockHAServer("", token)
	server.SetLogger(logger)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock server: %w", err)
	}

	client := ha.NewClient(server.URL(), token, logger)
	if err := client.Connect(); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}

	reg := prometheus.NewRegistry()
	return &TestEnv{
		Server:         server,
		HAClient:       pkgha.WrapClient(client),
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Registry:       reg,
		Tracker:        shadowstate.NewTracker(),
		internalClient: client,
	}, nil
}

// InitializeHeatingStates seeds DefaultHeatingStates without event delay
func (e *TestEnv) InitializeHeatingStates() {
	e.Server.SetEventDelay(0)
	for id, value := range DefaultHeatingStates {
		e.Server.SetState(id, value, nil)
	}
	e.Server.SetEventDelay(defaultEventDelay)
}

// WriteConfig writes yaml as the heating config into a new directory
// below parent and returns it
func WriteConfig(parent, yaml string) (string, error) {
	dir, err := os.MkdirTemp(parent, "configs")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, config.HeatingConfigFile), []byte(yaml), 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// StartPlugins creates and starts every registered plugin against the
// mock server, reading configuration from configDir.
func (e *TestEnv) StartPlugins(configDir string, readOnly bool) error {
	ctx := plugin.NewContext(e.HAClient, e.Logger, readOnly, configDir, e.Metrics)

	plugins, err := plugin.CreateAll(ctx)
	if err != nil {
		return err
	}
	if err := plugin.StartAll(plugins); err != nil {
		return err
	}

	plugin.RegisterShadowStates(e.Tracker, plugins)
	e.Plugins = plugins
	return nil
}

// Plugin returns the started plugin called name, or nil
func (e *TestEnv) Plugin(name string) plugin.Plugin {
	for _, p := range e.Plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	plugin.StopAll(e.Plugins)
	e.Plugins = nil
	if e.internalClient != nil {
		e.internalClient.Disconnect()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
}

// GetServiceCalls returns all service calls made to the mock server.
func (e *TestEnv) GetServiceCalls() []ServiceCall {
	return e.Server.GetServiceCalls()
}

// ClearServiceCalls clears the recorded service calls.
func (e *TestEnv) ClearServiceCalls() {
	e.Server.ClearServiceCalls()
}
