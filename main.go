package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"bme280server/bme280"
	"github.com/aldernero/scd4x"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type ProgramArgs struct {
	// Server Options
	Host string `short:"H" long:"host" default:"127.0.0.1" description:"IP to listen on"`
	Port uint16 `short:"P" long:"port" default:"27315" description:"Port to listen on"`

	// Sensor Options
	Interval  uint16 `short:"I" long:"interval" default:"5" description:"Interval between readings"`
	I2CDevice string `short:"D" long:"i2cdev" description:"The used I2C device (default: auto)"`
	Address   uint16 `short:"A" long:"address" default:"76" base:"16" description:"I2C address of the BME280 (76 or 77, hex)"`
	OsrsT     string `long:"osrs-t" default:"4x" choice:"Off" choice:"1x" choice:"2x" choice:"4x" choice:"8x" choice:"16x" description:"Temperature oversampling"`
	OsrsP     string `long:"osrs-p" default:"4x" choice:"Off" choice:"1x" choice:"2x" choice:"4x" choice:"8x" choice:"16x" description:"Pressure oversampling"`
	OsrsH     string `long:"osrs-h" default:"4x" choice:"Off" choice:"1x" choice:"2x" choice:"4x" choice:"8x" choice:"16x" description:"Humidity oversampling"`
	SCD4x     bool   `long:"scd4x" description:"Also read CO2 from an SCD4x on the same bus"`

	// Misc Options
	Datalog  string `short:"L" long:"datalog" description:"SQLite file to append readings to"`
	LogLevel string `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log verbosity"`
}

const (
	MIN_TIMEOUT_SECONDS = 2
)

// co2Reader returns SCD4x humidity and CO2.
type co2Reader func() (float64, uint16, error)

func recordReadings(ch <-chan physic.Env, store *readingStore, readCO2 co2Reader, datalog *DataLog) {
	for env := range ch {
		// BME280
		reading := NewSensorReading(time.Now())
		reading.Temperature = env.Temperature.Celsius()
		reading.Pressure = float64(env.Pressure) / float64(bme280.HectoPascal)
		reading.Humidity = float64(env.Humidity) / float64(physic.PercentRH)

		// SCD4x
		if readCO2 != nil {
			rh, co2, err := readCO2()
			if err != nil {
				log.Errorf("error while reading SCD4x data: %v", err)
				totalSensorErrors.WithLabelValues("scd4x").Inc()
			} else {
				reading.HumiditySCD = rh
				reading.CO2 = co2
			}
		}

		store.Set(reading)
		observeReading(reading)
		log.Debugf("New reading: %.2f°C, %s, %.1f%%RH", reading.Temperature, humanize.SIWithDigits(reading.Pressure*100, 1, "Pa"), reading.Humidity)

		if datalog != nil {
			if err := datalog.Insert(reading); err != nil {
				log.Errorf("Couldn't log reading: %v", err)
				totalSensorErrors.WithLabelValues("datalog").Inc()
			}
		}
	}
	log.Warn("Sensing stopped")
}

func getOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}

func setupI2CBus(i2cdev string) i2c.BusCloser {
	if _, err := host.Init(); err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}

	bus, err := i2creg.Open(i2cdev)
	if err != nil {
		log.Fatalf("Couldn't open I2C device: %v", err)
	}

	return bus
}

func parseOpts(args *ProgramArgs) (bme280.Opts, error) {
	var opts bme280.Opts
	var err error
	if opts.Temperature, err = bme280.ParseOversampling(args.OsrsT); err != nil {
		return opts, fmt.Errorf("osrs-t: %w", err)
	}
	if opts.Pressure, err = bme280.ParseOversampling(args.OsrsP); err != nil {
		return opts, fmt.Errorf("osrs-p: %w", err)
	}
	if opts.Humidity, err = bme280.ParseOversampling(args.OsrsH); err != nil {
		return opts, fmt.Errorf("osrs-h: %w", err)
	}
	return opts, nil
}

// setupBMESensor returns the device. the caller has the responsibility to close the bus
func setupBMESensor(i2cBus i2c.BusCloser, addr uint16, opts *bme280.Opts) *bme280.Dev {
	dev, err := bme280.NewI2C(i2cBus, addr, opts)
	if err != nil {
		log.Fatalf("Couldn't initialize sensor: %v", err)
	}

	return dev
}

func setupSCDSensor(i2cBus i2c.BusCloser) *scd4x.SCD4x {
	sensor, err := scd4x.SensorInit(i2cBus, false)
	if err != nil {
		log.Fatalln(err.Error())
	}

	log.Info("Initializing SCD4x…")
	if err := sensor.StopMeasurements(); err != nil {
		log.Fatalf("Error while trying to stop periodic measurements: %v", err)
	}
	if err := sensor.StartMeasurements(); err != nil {
		log.Fatalf("Error while trying to start periodic measurements: %v", err)
	}
	log.Info("Done")

	return sensor
}

func main() {
	args := ProgramArgs{}
	argParser := flags.NewParser(&args, flags.Default)

	if _, err := argParser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level, err := log.ParseLevel(args.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOpts(&args)
	if err != nil {
		log.Fatalf("Invalid oversampling: %v", err)
	}

	// Boring i2c setup (error handling happens in these functions)
	bus := setupI2CBus(args.I2CDevice)
	defer bus.Close()

	bmeDev := setupBMESensor(bus, args.Address, &opts)
	log.Infof("Found %s at 0x%02X", bmeDev, args.Address)

	var readCO2 co2Reader
	if args.SCD4x {
		scdDev := setupSCDSensor(bus)
		defer scdDev.StopMeasurements()
		readCO2 = func() (float64, uint16, error) {
			data, err := scdDev.ReadMeasurement()
			return data.Rh, data.CO2, err
		}

		log.Info("Waking up in a second…")
		// give the sensor time to wake up
		time.Sleep(1 * time.Second)
	}

	var datalog *DataLog
	if args.Datalog != "" {
		datalog, err = OpenDataLog(args.Datalog)
		if err != nil {
			log.Fatalf("Couldn't open datalog: %v", err)
		}
		defer datalog.Close()
		log.Infof("Logging readings to %s", args.Datalog)
	}

	registerMetrics(prometheus.DefaultRegisterer)
	store := &readingStore{}

	// SenseContinuous will take one reading immediately before looping
	intervalDuration := time.Duration(args.Interval) * time.Second
	readingChannel, err := bmeDev.SenseContinuous(intervalDuration)
	if err != nil {
		log.Fatalf("Couldn't start taking readings: %v", err)
	}
	defer bmeDev.Halt()

	// Start background measurements
	go recordReadings(readingChannel, store, readCO2, datalog)

	timeoutLen := max(MIN_TIMEOUT_SECONDS, int(args.Interval))

	addr := fmt.Sprintf("%s:%d", args.Host, args.Port)
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  time.Duration(timeoutLen) * time.Second,
		WriteTimeout: time.Duration(timeoutLen) * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      newRouter(bmeDev, store, datalog, prometheus.DefaultGatherer),
	}

	started := time.Now()
	go func() {
		if args.Host == "0.0.0.0" {
			localIP := getOutboundIP() // resolve local IP for easier debugging
			log.Infof("Listening on %s:%d…", localIP.String(), args.Port)
		} else {
			log.Infof("Listening on %s…", addr)
		}

		err := srv.ListenAndServe()
		log.Infof("Shutdown (%v)", err)
	}()

	sigChan := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+/) will not be caught.
	signal.Notify(sigChan, os.Interrupt)

	<-sigChan
	log.Infof("Stopping, started %s", humanize.Time(started))

	// Give the server a timeout period of 4 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	// Doesn't block if no connections, but will otherwise wait until the timeout deadline.
	_ = srv.Shutdown(ctx)
}
