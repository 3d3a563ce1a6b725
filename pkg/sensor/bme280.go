package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280Sensor reads temperature, humidity and pressure from a Bosch
// BME280 on an I²C bus.
type BME280Sensor struct {
	dev    *bmxx80.Dev
	bus    i2c.BusCloser
	digits int
}

func NewBME280Sensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	dev, err := bmxx80.NewI2C(bus, uint16(cfg.I2CAddress), &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("bme280 init: %w", err)
	}
	return &BME280Sensor{dev: dev, bus: bus, digits: cfg.RoundDigits}, nil
}

func (s *BME280Sensor) Read() ([]Reading, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return nil, fmt.Errorf("bme280 sense: %w", err)
	}
	t, h, p := envValues(e)
	return newReadings(t, h, p, s.digits, time.Now()), nil
}

func (s *BME280Sensor) Close() error {
	if s.dev != nil {
		if err := s.dev.Halt(); err != nil {
			return fmt.Errorf("bme280 halt: %w", err)
		}
	}
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

// envValues converts a periph measurement to °C, %RH and hPa.
func envValues(e physic.Env) (tempC, humidityPct, pressureHPa float64) {
	tempC = e.Temperature.Celsius()
	humidityPct = float64(e.Humidity) / float64(physic.PercentRH)
	pressureHPa = float64(e.Pressure) / float64(physic.Pascal) / 100.0 // 1 hPa = 100 Pa
	return
}
