package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/mcrt/internal/physics"
	"github.com/go-viper/mapstructure/v2"
)

// frequency decodes either a frequency or a wavelength into Hz.
type frequency float64

// Unit factors to CGS. Keys are lower case.
var unitFactors = map[string]float64{
	"cm": 1, "m": 100, "km": 1e5,
	"angstrom": physics.Angstrom, "aa": physics.Angstrom, "nm": 1e-7, "um": 1e-4,
	"cm/s": 1, "m/s": 100, "km/s": physics.KmPerS,
	"s": 1, "min": 60, "h": 3600, "hour": 3600, "d": physics.Day, "day": physics.Day, "days": physics.Day,
	"erg/s": 1, "w": 1e7, "lsun": physics.SolarLuminosity,
	"k":      1,
	"g/cm^3": 1, "g/cm3": 1, "kg/m^3": 1e-3,
	"hz": 1, "khz": 1e3, "mhz": 1e6, "ghz": 1e9, "thz": 1e12, "phz": 1e15,
}

var wavelengthUnits = map[string]bool{
	"cm": true, "m": true, "km": true, "angstrom": true, "aa": true, "nm": true, "um": true,
}

// parseQuantity reads "<number> [unit]" and returns the value in CGS along
// with the normalised unit.
func parseQuantity(raw string) (float64, string, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", fmt.Errorf("malformed quantity %q", raw)
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed quantity %q: %w", raw, err)
	}
	if len(fields) == 1 {
		return value, "", nil
	}

	unit := strings.ToLower(fields[1])
	factor, ok := unitFactors[unit]
	if !ok {
		return 0, "", fmt.Errorf("unknown unit %q in %q", fields[1], raw)
	}

	return value * factor, unit, nil
}

var (
	float64Type   = reflect.TypeOf(float64(0))
	frequencyType = reflect.TypeOf(frequency(0))
	durationType  = reflect.TypeOf(time.Duration(0))
)

// quantityHook converts unit-bearing strings into CGS numbers.
func quantityHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		raw := data.(string)

		switch to {
		case float64Type:
			value, _, err := parseQuantity(raw)
			return value, err
		case frequencyType:
			value, unit, err := parseQuantity(raw)
			if err != nil {
				return nil, err
			}
			if wavelengthUnits[unit] {
				if value <= 0 {
					return nil, fmt.Errorf("wavelength %q must be positive", raw)
				}
				return frequency(physics.SpeedOfLight / value), nil
			}
			return frequency(value), nil
		case durationType:
			d, err := time.ParseDuration(strings.ReplaceAll(raw, " ", ""))
			if err != nil {
				return nil, fmt.Errorf("malformed duration %q: %w", raw, err)
			}
			return d, nil
		default:
			return data, nil
		}
	}
}
