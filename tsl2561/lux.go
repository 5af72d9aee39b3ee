package tsl2561

import "fmt"

// CalculateLux converts raw counts using the handle's current integration
// time, gain and package coefficients.
func (tsl *TSL2561) CalculateLux(broadband, ir uint16) (float64, error) {
	return CalculateLux(broadband, ir, tsl.Profile(), tsl.gain, tsl.Model.LuxScale())
}

// CalculateLux is the fixed-point approximation from the TSL2561 datasheet.
// The result is always whole lux: the final step rounds to the nearest unit.
// A channel ratio above every K in the table yields 0.
func CalculateLux(broadband, ir uint16, profile IntegrationProfile, gain int, table []LuxCoefficient) (float64, error) {
	if broadband >= profile.Clip || ir >= profile.Clip {
		return 0, fmt.Errorf("broadband %v, infrared %v, clip %v: %w", broadband, ir, profile.Clip, ErrSaturated)
	}
	if gain <= 0 {
		return 0, fmt.Errorf("gain %d: %w", gain, ErrInvalidArgument)
	}

	scale := uint64(profile.Scale) / uint64(gain)
	channel0 := uint64(broadband) * scale / luxChannelScale
	channel1 := uint64(ir) * scale / luxChannelScale

	var ratio uint64
	if channel0 != 0 {
		ratio = channel1 * luxChannelScale / channel0
	}
	ratio = (ratio + 1) / 2

	var b, m uint64
	for _, c := range table {
		if ratio <= uint64(c.K) {
			b, m = uint64(c.B), uint64(c.M)
			break
		}
	}

	var lux uint64
	if channel0*b > channel1*m {
		lux = channel0*b - channel1*m
	}
	return float64((lux + luxRound) / luxScale), nil
}

// Returns the normalized output for a given spectrum type
func GetNormalizedOutput(spectrumType byte, ch0, ch1 uint16) float64 {
	switch spectrumType {
	case TSL2561_VISIBLE:
		visible := float64(ch0) - float64(ch1)
		if visible < 0 {
			visible = 0
		}
		return visible / 0xFFFF
	case TSL2561_INFRARED:
		return float64(ch1) / 0xFFFF
	case TSL2561_FULLSPECTRUM:
		return float64(ch0) / 0xFFFF
	default:
		return 0
	}
}
