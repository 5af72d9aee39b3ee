package tsl2561

import "time"

const (
	TSL2561_VISIBLE      byte = 2 ///< channel 0 - channel 1
	TSL2561_INFRARED     byte = 1 ///< channel 1
	TSL2561_FULLSPECTRUM byte = 0 ///< channel 0

	TSL2561_ADDR        uint16 = 0x39 ///< Default I2C address (ADDR pin floating)
	TSL2561_ADDR_LOW    uint16 = 0x29 ///< ADDR pin tied to GND
	TSL2561_ADDR_HIGH   uint16 = 0x49 ///< ADDR pin tied to VDD
	TSL2561_COMMAND_BIT byte   = 0x80 ///< Must be set on every register address
	TSL2561_WORD_BIT    byte   = 0x20 ///< 1 = read/write word rather than byte

	TSL2561_CONTROL_POWERON  byte = 0x03
	TSL2561_CONTROL_POWEROFF byte = 0x00

	TSL2561_GAIN_BIT byte = 0x10 ///< TIMING bit selecting 16x gain

	TSL2561_DEVICE_ID byte = 0x0A ///< Expected contents of the ID register
)

// TSL2561 Register map
const (
	TSL2561_REGISTER_CONTROL  byte = 0x00 // Power control
	TSL2561_REGISTER_TIMING   byte = 0x01 // Integration time and gain
	TSL2561_REGISTER_ID       byte = 0x0A // Part number / revision
	TSL2561_REGISTER_CHANNEL0 byte = 0x0C // Channel 0 (broadband), low byte first
	TSL2561_REGISTER_CHANNEL1 byte = 0x0E // Channel 1 (infrared), low byte first
)

// Supported integration times, in milliseconds
const (
	TSL2561_INTEGRATIONTIME_13MS  = 13
	TSL2561_INTEGRATIONTIME_101MS = 101
	TSL2561_INTEGRATIONTIME_402MS = 402
)

// Supported gains
const (
	TSL2561_GAIN_1X  = 1
	TSL2561_GAIN_16X = 16
)

// Fixed-point constants for the lux approximation
const (
	luxChannelScale = 1024    // 1 << 10
	luxRound        = 1 << 13 // half of luxScale
	luxScale        = 1 << 14
)

// IntegrationProfile describes everything that depends on the selected integration time.
type IntegrationProfile struct {
	Code         byte          // TIMING register integration bits
	Wait         time.Duration // how long to wait for one integration cycle
	Clip         uint16        // channel counts at or above this are saturated
	AutogainLow  uint16        // broadband below this switches to 16x
	AutogainHigh uint16        // broadband above this switches to 1x
	Scale        uint32        // channel scale, normalizes counts to the 402ms/16x case
}

var integrationProfiles = map[int]IntegrationProfile{
	TSL2561_INTEGRATIONTIME_13MS:  {0x00, 15 * time.Millisecond, 4900, 100, 4850, 0x7517},
	TSL2561_INTEGRATIONTIME_101MS: {0x01, 120 * time.Millisecond, 37000, 200, 36000, 0x0FE7},
	TSL2561_INTEGRATIONTIME_402MS: {0x02, 450 * time.Millisecond, 65000, 500, 63000, 1 << 10},
}

// ProfileFor returns the profile of a supported integration time.
func ProfileFor(ms int) (IntegrationProfile, bool) {
	p, ok := integrationProfiles[ms]
	return p, ok
}

// LuxCoefficient is one segment of the piecewise-linear lux approximation.
type LuxCoefficient struct {
	K uint32 // ratio threshold
	B uint32 // channel 0 coefficient
	M uint32 // channel 1 coefficient
}

// T, FN and CL packages
var standardLuxScale = []LuxCoefficient{
	{0x0040, 0x01f2, 0x01be},
	{0x0080, 0x0214, 0x02d1},
	{0x00c0, 0x023f, 0x037b},
	{0x0100, 0x0270, 0x03fe},
	{0x0138, 0x016f, 0x01fc},
	{0x019a, 0x00d2, 0x00fb},
	{0x029a, 0x0018, 0x0012},
}

// CS package
var csLuxScale = []LuxCoefficient{
	{0x0043, 0x0204, 0x01ad},
	{0x0085, 0x0228, 0x02c1},
	{0x00c8, 0x0253, 0x0363},
	{0x010a, 0x0282, 0x03df},
	{0x014d, 0x0177, 0x01dd},
	{0x019a, 0x0101, 0x0127},
	{0x029a, 0x0037, 0x002b},
}

func IntegrationTimeToString(ms int) string {
	switch ms {
	case TSL2561_INTEGRATIONTIME_13MS:
		return "13.7ms"
	case TSL2561_INTEGRATIONTIME_101MS:
		return "101ms"
	case TSL2561_INTEGRATIONTIME_402MS:
		return "402ms"
	default:
		return "Unknown"
	}
}

func GainToString(gain int) string {
	switch gain {
	case TSL2561_GAIN_1X:
		return "Low gain (1x)"
	case TSL2561_GAIN_16X:
		return "High gain (16x)"
	default:
		return "Unknown"
	}
}
