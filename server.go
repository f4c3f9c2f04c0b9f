package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bme280server/bme280"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const defaultHistory = 60

// registerDevice is the part of *bme280.Dev the handlers need.
type registerDevice interface {
	ReadSettings() (bme280.Settings, error)
	Calibration() bme280.CalibData
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonStr, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonStr); err != nil {
		log.Warnf("Couldn't send response: %v", err)
	}
}

func newRouter(dev registerDevice, store *readingStore, datalog *DataLog, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.Get())
	}).Methods(http.MethodGet)

	r.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
		settings, err := dev.ReadSettings()
		if err != nil {
			log.Errorf("Couldn't read settings: %v", err)
			totalSensorErrors.WithLabelValues("bme280").Inc()
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, NewSettingsView(settings))
	}).Methods(http.MethodGet)

	r.HandleFunc("/calibration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, dev.Calibration())
	}).Methods(http.MethodGet)

	r.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		if datalog == nil {
			http.Error(w, "datalog disabled", http.StatusNotFound)
			return
		}
		n := defaultHistory
		if s := r.URL.Query().Get("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v <= 0 {
				http.Error(w, "invalid n", http.StatusBadRequest)
				return
			}
			n = v
		}
		readings, err := datalog.Last(n)
		if err != nil {
			log.Errorf("Couldn't query datalog: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if readings == nil {
			readings = []SensorReading{}
		}
		writeJSON(w, readings)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
