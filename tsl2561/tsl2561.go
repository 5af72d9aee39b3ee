package tsl2561

/*
 * tsl2561 - Package for interacting with TSL2561 lux sensors.
 *
 * The handle holds no locks. Callers sharing one sensor between goroutines
 * must serialize access themselves, since reads toggle power and may change gain.
 *
 */

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

var (
	ErrInvalidDevice   = errors.New("tsl2561: invalid device")
	ErrInvalidArgument = errors.New("tsl2561: invalid argument")
	ErrSaturated       = errors.New("tsl2561: sensor saturated")
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}

// SetLogger replaces the package logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		l = logger
	}
}

type TSL2561 struct {
	Address uint16
	Model   Model

	bus             Bus
	active          bool
	gain            int
	integrationTime int
	sleep           func(time.Duration)
}

// Reading is the result of a single Read.
type Reading struct {
	Broadband       uint16
	Infrared        uint16
	Lux             float64 // zero when Raw is set
	Raw             bool
	Gain            int
	IntegrationTime int
	GainChanged     bool // autogain switched gain and re-read the channels
}

// Connect to a TSL2561 on a Linux I2C bus, verify its identity and apply the
// default configuration (1x gain, 13ms).
func NewTSL2561(model Model, path string, addr uint16) (*TSL2561, error) {
	if addr == 0 {
		addr = TSL2561_ADDR
	}
	device, err := OpenDevfs(path, addr)
	if err != nil {
		return nil, err
	}
	tsl, err := NewWithBus(device, addr, model)
	if err != nil {
		device.Close()
		return nil, err
	}
	return tsl, nil
}

// NewWithBus is like NewTSL2561 but uses an already opened bus.
func NewWithBus(bus Bus, addr uint16, model Model) (*TSL2561, error) {
	tsl := &TSL2561{
		Address: addr,
		Model:   model,
		bus:     bus,
		sleep:   time.Sleep,
	}

	id, err := tsl.SensorID()
	if err != nil {
		return nil, fmt.Errorf("failed to read device id: %w", err)
	}
	if id != TSL2561_DEVICE_ID {
		return nil, fmt.Errorf("bad sensor id 0x%02x at address 0x%02x: %w", id, addr, ErrInvalidDevice)
	}

	tsl.gain = TSL2561_GAIN_1X
	tsl.integrationTime = TSL2561_INTEGRATIONTIME_13MS
	if err := tsl.updateGainAndTime(); err != nil {
		return nil, err
	}
	l.Debugf("TSL2561%s ready at 0x%02x", model, addr)
	return tsl, nil
}

// SensorID reads the identity register.
func (tsl *TSL2561) SensorID() (byte, error) {
	return tsl.readRegister8(TSL2561_REGISTER_ID)
}

// Close releases the bus, if it can be closed. The sensor is left powered off.
func (tsl *TSL2561) Close() error {
	if c, ok := tsl.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Active reports the last power state written to the sensor.
func (tsl *TSL2561) Active() bool {
	return tsl.active
}

// SetActive powers the sensor on or off.
func (tsl *TSL2561) SetActive(on bool) error {
	code := TSL2561_CONTROL_POWEROFF
	if on {
		code = TSL2561_CONTROL_POWERON
	}
	if err := tsl.writeRegister8(TSL2561_REGISTER_CONTROL, code); err != nil {
		return err
	}
	tsl.active = on
	return nil
}

// withActive powers the sensor on for the duration of fn. The power-off write
// is attempted on every path, including when fn or the power-on write fails.
func (tsl *TSL2561) withActive(fn func() error) (err error) {
	defer func() {
		if offErr := tsl.SetActive(false); offErr != nil {
			l.Errorf("Failed to power off sensor: %v", offErr)
			err = errors.Join(err, offErr)
		}
	}()
	if err := tsl.SetActive(true); err != nil {
		return err
	}
	return fn()
}

func (tsl *TSL2561) Gain() int {
	return tsl.gain
}

func (tsl *TSL2561) IntegrationTime() int {
	return tsl.integrationTime
}

// Profile returns the integration profile currently in effect.
func (tsl *TSL2561) Profile() IntegrationProfile {
	return integrationProfiles[tsl.integrationTime]
}

// Set the gain for the sensor, 1 or 16
func (tsl *TSL2561) SetGain(gain int) error {
	if !slices.Contains([]int{TSL2561_GAIN_1X, TSL2561_GAIN_16X}, gain) {
		return fmt.Errorf("gain must be either 1x or 16x, got %d: %w", gain, ErrInvalidArgument)
	}
	prev := tsl.gain
	tsl.gain = gain
	if err := tsl.updateGainAndTime(); err != nil {
		tsl.gain = prev
		return err
	}
	return nil
}

// Set the integration time for the sensor, 13, 101 or 402 milliseconds
func (tsl *TSL2561) SetIntegrationTime(ms int) error {
	if _, ok := integrationProfiles[ms]; !ok {
		return fmt.Errorf("integration time must be 13ms, 101ms or 402ms, got %d: %w", ms, ErrInvalidArgument)
	}
	prev := tsl.integrationTime
	tsl.integrationTime = ms
	if err := tsl.updateGainAndTime(); err != nil {
		tsl.integrationTime = prev
		return err
	}
	return nil
}

func (tsl *TSL2561) timingValue() byte {
	value := integrationProfiles[tsl.integrationTime].Code
	if tsl.gain == TSL2561_GAIN_16X {
		value |= TSL2561_GAIN_BIT
	}
	return value
}

func (tsl *TSL2561) updateGainAndTime() error {
	return tsl.withActive(func() error {
		return tsl.writeRegister8(TSL2561_REGISTER_TIMING, tsl.timingValue())
	})
}

// ReadRaw powers the sensor on, waits one integration cycle and reads both channels.
func (tsl *TSL2561) ReadRaw() (broadband uint16, ir uint16, err error) {
	err = tsl.withActive(func() error {
		tsl.sleep(integrationProfiles[tsl.integrationTime].Wait)

		var err error
		broadband, err = tsl.readRegister16(TSL2561_REGISTER_CHANNEL0)
		if err != nil {
			return err
		}
		ir, err = tsl.readRegister16(TSL2561_REGISTER_CHANNEL1)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	l.Debugf("Broadband: %v, Infrared: %v", broadband, ir)
	return broadband, ir, nil
}

// Read takes a measurement. With autogain the gain is switched when the
// broadband count falls outside the profile thresholds, and the channels are
// read again. With raw the lux calculation is skipped.
//
// On ErrSaturated the returned Reading still carries the raw counts.
func (tsl *TSL2561) Read(autogain, raw bool) (Reading, error) {
	broadband, ir, err := tsl.ReadRaw()
	if err != nil {
		return Reading{}, err
	}

	reading := Reading{Raw: raw}
	if autogain {
		profile := tsl.Profile()
		newGain := tsl.gain
		if broadband < profile.AutogainLow {
			newGain = TSL2561_GAIN_16X
		} else if broadband > profile.AutogainHigh {
			newGain = TSL2561_GAIN_1X
		}
		if newGain != tsl.gain {
			l.Debugf("Autogain: broadband %v, switching to %v", broadband, GainToString(newGain))
			if err := tsl.SetGain(newGain); err != nil {
				return Reading{}, err
			}
			reading.GainChanged = true
			broadband, ir, err = tsl.ReadRaw()
			if err != nil {
				return Reading{}, err
			}
		}
	}

	reading.Broadband = broadband
	reading.Infrared = ir
	reading.Gain = tsl.gain
	reading.IntegrationTime = tsl.integrationTime
	if raw {
		return reading, nil
	}

	lux, err := tsl.CalculateLux(broadband, ir)
	if err != nil {
		return reading, err
	}
	reading.Lux = lux
	return reading, nil
}
