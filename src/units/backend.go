package units

import "fmt"

// ScalarConverter converts a value between two units of the same
// measurement category. Implementations reject incompatible or unknown
// units with an error.
type ScalarConverter interface {
	Convert(value float64, fromUnit, toUnit string) (float64, error)
}

// factorTables holds, per linear category, the multiplier from each
// canonical unit to the category base unit (m, m2, l, kg, kg/m3, j,
// m/s, l/min). Temperature is affine and handled separately.
var factorTables = map[Category]map[string]float64{
	CategoryLength: {
		"m": 1, "km": 1000, "cm": 0.01, "mm": 0.001,
		"mi": 1609.344, "yd": 0.9144, "ft": 0.3048, "in": 0.0254,
		"nmi": 1852,
	},
	CategoryArea: {
		"m2": 1, "km2": 1e6, "cm2": 1e-4,
		"ft2": 0.09290304, "in2": 0.00064516, "mi2": 2589988.110336,
		"ha": 1e4, "ac": 4046.8564224,
	},
	CategoryVolume: {
		"l": 1, "ml": 0.001, "m3": 1000, "cm3": 0.001,
		"gal": 3.785411784, "impgal": 4.54609,
		"qt": 0.946352946, "pt": 0.473176473, "floz": 0.0295735295625,
		"bbl": 158.987294928,
	},
	CategoryMass: {
		"kg": 1, "g": 0.001, "mg": 1e-6, "mt": 1000,
		"lb": 0.45359237, "oz": 0.028349523125, "st": 6.35029318,
	},
	CategoryDensity: {
		"kg/m3": 1, "kg/l": 1000, "g/ml": 1000, "g/l": 1,
		"lb/gal": 119.82642731689663, "lb/ft3": 16.01846337396014,
	},
	CategoryEnergy: {
		"j": 1, "kj": 1e3, "mj": 1e6,
		"wh": 3600, "kwh": 3.6e6, "mwh": 3.6e9,
		"btu": 1055.05585262, "cal": 4.184, "kcal": 4184,
	},
	// mi/min is aliased but deliberately absent here; the engine reaches
	// it through a fixed mph intermediate hop.
	CategoryRate: {
		"km/h": 1.0 / 3.6, "mph": 0.44704, "m/s": 1,
		"knot": 0.5144444444444445, "ft/s": 0.3048,
	},
	CategoryFlow: {
		"l/min": 1, "l/h": 1.0 / 60.0, "l/s": 60,
		"gal/min": 3.785411784, "gal/h": 3.785411784 / 60.0,
		"m3/h": 1000.0 / 60.0,
	},
}

type tableConverter struct{}

// NewConverter returns the default table-driven scalar backend.
func NewConverter() ScalarConverter {
	return tableConverter{}
}

// Convert normalizes both unit strings, finds the category that
// contains both, and applies the factor (or affine temperature
// formula). Returns an error when either unit is unknown or the units
// belong to different categories.
func (tableConverter) Convert(value float64, fromUnit, toUnit string) (float64, error) {
	from := Normalize(fromUnit)
	to := Normalize(toUnit)
	if from == to {
		if _, ok := CategoryOf(from); !ok {
			return 0, fmt.Errorf("unknown unit %q", fromUnit)
		}
		return value, nil
	}

	fromCat, okFrom := CategoryOf(from)
	toCat, okTo := CategoryOf(to)
	if !okFrom {
		return 0, fmt.Errorf("unknown unit %q", fromUnit)
	}
	if !okTo {
		return 0, fmt.Errorf("unknown unit %q", toUnit)
	}
	if fromCat != toCat {
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s): incompatible categories", from, fromCat, to, toCat)
	}

	if fromCat == CategoryTemperature {
		return convertTemperature(value, from, to)
	}

	factors := factorTables[fromCat]
	fromFactor, ok := factors[from]
	if !ok {
		return 0, fmt.Errorf("unit %q is not supported by the scalar backend", from)
	}
	toFactor, ok := factors[to]
	if !ok {
		return 0, fmt.Errorf("unit %q is not supported by the scalar backend", to)
	}
	return value * fromFactor / toFactor, nil
}

func convertTemperature(value float64, from, to string) (float64, error) {
	var kelvin float64
	switch from {
	case "c":
		kelvin = value + 273.15
	case "f":
		kelvin = (value-32)*5/9 + 273.15
	case "k":
		kelvin = value
	default:
		return 0, fmt.Errorf("unknown temperature unit %q", from)
	}
	switch to {
	case "c":
		return kelvin - 273.15, nil
	case "f":
		return (kelvin-273.15)*9/5 + 32, nil
	case "k":
		return kelvin, nil
	}
	return 0, fmt.Errorf("unknown temperature unit %q", to)
}
