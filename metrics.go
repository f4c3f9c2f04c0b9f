package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Initialize Prometheus metrics.
var (
	temperatureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bme280_temperature_celsius",
		Help: "Last compensated temperature.",
	})

	pressureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bme280_pressure_hpa",
		Help: "Last compensated pressure.",
	})

	humidityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bme280_humidity_percent",
		Help: "Last compensated relative humidity.",
	})

	co2Gauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scd4x_co2_ppm",
		Help: "Last CO2 concentration.",
	})

	totalReadings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "total_readings",
		Help: "Readings taken since start.",
	})

	totalSensorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "total_sensor_errors",
			Help: "Failed sensor or datalog operations.",
		},
		[]string{"source"},
	)
)

func registerMetrics(r prometheus.Registerer) {
	r.MustRegister(temperatureGauge)
	r.MustRegister(pressureGauge)
	r.MustRegister(humidityGauge)
	r.MustRegister(co2Gauge)
	r.MustRegister(totalReadings)
	r.MustRegister(totalSensorErrors)
}

func observeReading(reading SensorReading) {
	totalReadings.Inc()
	temperatureGauge.Set(reading.Temperature)
	pressureGauge.Set(reading.Pressure)
	humidityGauge.Set(reading.Humidity)
	if reading.CO2 != 0 {
		co2Gauge.Set(float64(reading.CO2))
	}
}
