package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bme280server/bme280"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"periph.io/x/conn/v3/physic"
)

type fakeDevice struct {
	settings bme280.Settings
	err      error
}

func (f *fakeDevice) ReadSettings() (bme280.Settings, error) {
	return f.settings, f.err
}

func (f *fakeDevice) Calibration() bme280.CalibData {
	return bme280.CalibData{T1: 27504, T2: 26435, T3: -1000}
}

func openTestLog(t *testing.T) *DataLog {
	l, err := OpenDataLog(filepath.Join(t.TempDir(), "readings.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewSensorReading(t *testing.T) {
	r := NewSensorReading(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC))
	if r.UpdatedStr != "2021-03-04 05:06:07" {
		t.Fatal(r.UpdatedStr)
	}
	if r.Temperature != 0 || r.CO2 != 0 {
		t.Fatalf("%+v", r)
	}
}

func TestParseOpts(t *testing.T) {
	args := ProgramArgs{OsrsT: "2x", OsrsP: "Off", OsrsH: "16x"}
	opts, err := parseOpts(&args)
	if err != nil {
		t.Fatal(err)
	}
	if opts != (bme280.Opts{Temperature: bme280.O2x, Pressure: bme280.Off, Humidity: bme280.O16x}) {
		t.Fatalf("%+v", opts)
	}

	args.OsrsH = "3x"
	if _, err := parseOpts(&args); !errors.Is(err, bme280.ErrUnrecognizedValue) {
		t.Fatalf("expected unrecognized value, got %v", err)
	}
}

func TestRecordReadings(t *testing.T) {
	registerMetrics(prometheus.NewRegistry())
	store := &readingStore{}
	dl := openTestLog(t)

	ch := make(chan physic.Env, 2)
	ch <- physic.Env{
		Temperature: 25*physic.Celsius + physic.ZeroCelsius,
		Pressure:    1000 * bme280.HectoPascal,
		Humidity:    50 * physic.PercentRH,
	}
	ch <- physic.Env{
		Temperature: 20*physic.Celsius + physic.ZeroCelsius,
		Pressure:    990 * bme280.HectoPascal,
		Humidity:    40 * physic.PercentRH,
	}
	close(ch)

	calls := 0
	readCO2 := func() (float64, uint16, error) {
		calls++
		if calls == 2 {
			return 0, 0, errors.New("not ready")
		}
		return 45.5, 800, nil
	}
	before := testutil.ToFloat64(totalReadings)
	recordReadings(ch, store, readCO2, dl)

	if got := testutil.ToFloat64(totalReadings) - before; got != 2 {
		t.Fatalf("readings counted: %v", got)
	}
	r := store.Get()
	if r.Pressure != 990 || r.Humidity != 40 {
		t.Fatalf("%+v", r)
	}
	if d := r.Temperature - 20; d > 0.001 || d < -0.001 {
		t.Fatalf("temperature %v", r.Temperature)
	}
	if r.CO2 != 0 || r.HumiditySCD != 0 {
		t.Fatalf("failed SCD4x read leaked into reading: %+v", r)
	}
	if testutil.ToFloat64(co2Gauge) != 800 {
		t.Fatal("co2 gauge not set")
	}

	logged, err := dl.Last(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 2 {
		t.Fatalf("logged %d readings", len(logged))
	}
	if logged[1].CO2 != 800 || logged[1].HumiditySCD != 45.5 || logged[1].Pressure != 1000 {
		t.Fatalf("%+v", logged[1])
	}
}

func TestDataLog_Last(t *testing.T) {
	dl := openTestLog(t)
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := NewSensorReading(base.Add(time.Duration(i) * time.Minute))
		r.Temperature = float64(i)
		if err := dl.Insert(r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := dl.Last(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d", len(got))
	}
	for i, r := range got {
		if r.Temperature != float64(4-i) {
			t.Fatalf("#%d: %+v", i, r)
		}
		if !r.Updated.Equal(base.Add(time.Duration(4-i) * time.Minute)) {
			t.Fatalf("#%d: %v", i, r.Updated)
		}
	}
}

func TestRouter(t *testing.T) {
	store := &readingStore{}
	reading := NewSensorReading(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC))
	reading.Temperature = 21.5
	store.Set(reading)

	dev := &fakeDevice{settings: bme280.Settings{
		CtrlHum:  bme280.CtrlHum{Humidity: bme280.O4x},
		CtrlMeas: bme280.CtrlMeas{Temperature: bme280.O2x, Pressure: bme280.O16x, Mode: bme280.Sleep},
		Config:   bme280.Config{Filter: bme280.F4},
	}}
	reg := prometheus.NewRegistry()
	registerMetrics(reg)
	r := newRouter(dev, store, nil, reg)

	rec := get(t, r, "/")
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var gotReading map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &gotReading); err != nil {
		t.Fatal(err)
	}
	if gotReading["temperature"] != 21.5 || gotReading["updated"] != "2021-03-04 05:06:07" {
		t.Fatalf("%v", gotReading)
	}
	if _, ok := gotReading["co2"]; ok {
		t.Fatal("co2 should be omitted")
	}

	rec = get(t, r, "/settings")
	var view SettingsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	want := SettingsView{
		Mode:                 "Sleep",
		TemperatureOversampl: "2x",
		PressureOversampl:    "16x",
		HumidityOversampl:    "4x",
		Filter:               uint8(bme280.F4),
	}
	if view != want {
		t.Fatalf("%+v != %+v", view, want)
	}

	rec = get(t, r, "/calibration")
	var cal bme280.CalibData
	if err := json.Unmarshal(rec.Body.Bytes(), &cal); err != nil {
		t.Fatal(err)
	}
	if cal.T3 != -1000 {
		t.Fatalf("%+v", cal)
	}

	if rec = get(t, r, "/history"); rec.Code != http.StatusNotFound {
		t.Fatalf("history without datalog: %d", rec.Code)
	}

	rec = get(t, r, "/metrics")
	if !strings.Contains(rec.Body.String(), "bme280_temperature_celsius") {
		t.Fatal("metrics missing gauge")
	}

	dev.err = errors.New("bus gone")
	if rec = get(t, r, "/settings"); rec.Code != http.StatusBadGateway {
		t.Fatalf("settings error: %d", rec.Code)
	}
}

func TestRouter_History(t *testing.T) {
	dl := openTestLog(t)
	for i := 0; i < 3; i++ {
		r := NewSensorReading(time.Unix(int64(i), 0))
		r.CO2 = uint16(400 + i)
		if err := dl.Insert(r); err != nil {
			t.Fatal(err)
		}
	}
	r := newRouter(&fakeDevice{}, &readingStore{}, dl, prometheus.NewRegistry())

	rec := get(t, r, "/history?n=2")
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var got []SensorReading
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].CO2 != 402 || got[1].CO2 != 401 {
		t.Fatalf("%+v", got)
	}

	if rec = get(t, r, "/history?n=-1"); rec.Code != http.StatusBadRequest {
		t.Fatal(rec.Code)
	}
}
