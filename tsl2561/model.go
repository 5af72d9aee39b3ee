package tsl2561

import (
	"fmt"
	"strings"
)

// Model selects the sensor package. The packages share a register map but the
// CS package needs its own lux coefficients.
type Model int

const (
	TSL2561_PACKAGE_T Model = iota
	TSL2561_PACKAGE_FN
	TSL2561_PACKAGE_CL
	TSL2561_PACKAGE_CS
)

func (m Model) String() string {
	switch m {
	case TSL2561_PACKAGE_T:
		return "T"
	case TSL2561_PACKAGE_FN:
		return "FN"
	case TSL2561_PACKAGE_CL:
		return "CL"
	case TSL2561_PACKAGE_CS:
		return "CS"
	default:
		return "Unknown"
	}
}

// LuxScale returns the coefficient table for the package.
func (m Model) LuxScale() []LuxCoefficient {
	if m == TSL2561_PACKAGE_CS {
		return csLuxScale
	}
	return standardLuxScale
}

// ParseModel accepts the package suffix with or without the part number,
// e.g. "cs" or "TSL2561CS".
func ParseModel(s string) (Model, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "TSL2561")
	switch name {
	case "", "T":
		return TSL2561_PACKAGE_T, nil
	case "FN":
		return TSL2561_PACKAGE_FN, nil
	case "CL":
		return TSL2561_PACKAGE_CL, nil
	case "CS":
		return TSL2561_PACKAGE_CS, nil
	}
	return 0, fmt.Errorf("unknown TSL2561 package %q: %w", s, ErrInvalidArgument)
}
