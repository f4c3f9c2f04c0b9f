package bme280

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// HectoPascal is the unit weather reports use.
const HectoPascal = 100 * physic.Pascal

// Env fills e from m. Channels that are Off in opts are left untouched.
func (m *Measurement) Env(e *physic.Env, opts *Opts) {
	e.Temperature = physic.Temperature(int32(m.Temperature))*physic.Kelvin/1024 + physic.ZeroCelsius
	if opts.Pressure != Off {
		// It has 8 bits of fractional Pascal.
		e.Pressure = physic.Pressure(m.Pressure) * physic.Pascal / 256
	}
	if opts.Humidity != Off {
		// Convert base 1024 to physic's base.
		e.Humidity = physic.RelativeHumidity(int64(m.Humidity) * int64(physic.PercentRH) / 1024)
	}
}

// Sense requests a one time measurement as °C, kPa and % of relative humidity.
//
// The very first measurements may be of poor quality.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return d.wrap(errors.New("already sensing continuously"))
	}
	m, err := d.measure()
	if err != nil {
		return err
	}
	m.Env(e, &d.opts)
	return nil
}

// SenseContinuous returns measurements as °C, kPa and % of relative humidity
// on a continuous basis.
//
// The device stays in forced mode; each tick triggers one conversion.
//
// The application must call Halt() to stop the sensing when done to stop the
// sensor and close the channel.
//
// It's the responsibility of the caller to retrieve the values from the
// channel as fast as possible, otherwise the interval may not be respected.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval <= 0 {
		return nil, d.wrap(errors.New("interval must be positive"))
	}
	// Don't send the stop command to the device. Another caller may start
	// sensing between stopSensing and Lock, so retry until none is running.
	for {
		d.stopSensing()
		d.mu.Lock()
		if d.stop == nil {
			break
		}
		d.mu.Unlock()
	}
	defer d.mu.Unlock()
	sensing := make(chan physic.Env)
	stop := make(chan struct{})
	d.stop = stop
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(sensing)
		d.sensingContinuous(interval, sensing, stop)
	}()
	return sensing, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 100
	e.Pressure = physic.Pascal / 256
	e.Humidity = physic.PercentRH / 1024
}

// Halt stops the BME280 from acquiring measurements as initiated by
// SenseContinuous() and puts it to sleep.
//
// It is recommended to call this function before terminating the process to
// reduce idle power usage and a goroutine leak.
func (d *Dev) Halt() error {
	if !d.stopSensing() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setMode(Sleep)
}

// stopSensing terminates the SenseContinuous goroutine, if any, and reports
// whether there was one.
//
// It must be called without d.mu held since the goroutine takes it.
func (d *Dev) stopSensing() bool {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop == nil {
		return false
	}
	close(stop)
	d.wg.Wait()
	return true
}

func (d *Dev) sensingContinuous(interval time.Duration, sensing chan<- physic.Env, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		// Do one initial sensing right away.
		e := physic.Env{}
		d.mu.Lock()
		m, err := d.measure()
		if err != nil && d.stop == stop {
			// Let Measure and Sense work again without a Halt.
			d.stop = nil
		}
		d.mu.Unlock()
		if err != nil {
			log.Errorf("%s: failed to sense: %v", d, err)
			return
		}
		m.Env(&e, &d.opts)
		select {
		case sensing <- e:
		case <-stop:
			return
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}
