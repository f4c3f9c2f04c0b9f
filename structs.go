package main

import (
	"sync"
	"time"

	"bme280server/bme280"
)

type SensorReading struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
	Humidity    float64 `json:"humidity"`
	// SCD4x values, only set with --scd4x
	HumiditySCD float64   `json:"humidityScd,omitempty"`
	CO2         uint16    `json:"co2,omitempty"`
	Updated     time.Time `json:"-"`
	UpdatedStr  string    `json:"updated"`
}

func NewSensorReading(date time.Time) SensorReading {
	return SensorReading{
		Updated:    date,
		UpdatedStr: date.Format("2006-01-02 15:04:05"), // ISO 8601 without timezone
	}
}

// readingStore holds the latest reading, shared between the sensing loop and
// the HTTP handlers.
type readingStore struct {
	mu      sync.RWMutex
	current SensorReading
}

func (s *readingStore) Set(r SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = r
}

func (s *readingStore) Get() SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SettingsView is the JSON form of the BME280 control registers.
type SettingsView struct {
	Mode                 string `json:"mode"`
	TemperatureOversampl string `json:"temperatureOversampling"`
	PressureOversampl    string `json:"pressureOversampling"`
	HumidityOversampl    string `json:"humidityOversampling"`
	Filter               uint8  `json:"filter"`
	Standby              uint8  `json:"standby"`
	Measuring            bool   `json:"measuring"`
	ImUpdate             bool   `json:"imUpdate"`
}

func NewSettingsView(s bme280.Settings) SettingsView {
	return SettingsView{
		Mode:                 s.CtrlMeas.Mode.String(),
		TemperatureOversampl: s.CtrlMeas.Temperature.String(),
		PressureOversampl:    s.CtrlMeas.Pressure.String(),
		HumidityOversampl:    s.CtrlHum.Humidity.String(),
		Filter:               uint8(s.Config.Filter),
		Standby:              uint8(s.Config.Standby),
		Measuring:            s.Status.Measuring,
		ImUpdate:             s.Status.ImUpdate,
	}
}
