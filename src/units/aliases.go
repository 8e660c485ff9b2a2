// Package units holds the unit alias dictionary, the string normalizer
// and the scalar conversion backend used by the conversion engine.
package units

import (
	"sort"
	"strings"
)

// Category is a measurement category. Every canonical unit symbol
// belongs to exactly one category.
type Category string

const (
	CategoryLength      Category = "length"
	CategoryArea        Category = "area"
	CategoryVolume      Category = "volume"
	CategoryMass        Category = "mass"
	CategoryDensity     Category = "density"
	CategoryTemperature Category = "temperature"
	CategoryEnergy      Category = "energy"
	CategoryRate        Category = "rate"
	CategoryFlow        Category = "flow"
)

// categoryOrder fixes the lookup order so a string present in more than
// one alias map resolves deterministically to the first match.
var categoryOrder = []Category{
	CategoryLength,
	CategoryArea,
	CategoryVolume,
	CategoryMass,
	CategoryDensity,
	CategoryTemperature,
	CategoryEnergy,
	CategoryRate,
	CategoryFlow,
}

// aliasMaps maps normalized alias strings to canonical unit symbols,
// partitioned by category. Canonical symbols are stable and never shared
// between incompatible categories.
var aliasMaps = map[Category]map[string]string{
	CategoryLength: {
		"m": "m", "meter": "m", "metre": "m",
		"km": "km", "kilometer": "km", "kilometre": "km",
		"cm": "cm", "centimeter": "cm", "centimetre": "cm",
		"mm": "mm", "millimeter": "mm", "millimetre": "mm",
		"mi": "mi", "mile": "mi",
		"yd": "yd", "yard": "yd",
		"ft": "ft", "foot": "ft", "feet": "ft",
		"in": "in", "inch": "in", "inche": "in",
		"nmi": "nmi", "nautical mile": "nmi",
	},
	CategoryArea: {
		"m2": "m2", "sqm": "m2", "square meter": "m2", "square metre": "m2",
		"km2": "km2", "sqkm": "km2", "square kilometer": "km2",
		"cm2": "cm2", "sqcm": "cm2",
		"ft2": "ft2", "sqft": "ft2", "square foot": "ft2", "square feet": "ft2",
		"in2": "in2", "sqin": "in2",
		"mi2": "mi2", "sqmi": "mi2", "square mile": "mi2",
		"ha": "ha", "hectare": "ha",
		"ac": "ac", "acre": "ac",
	},
	CategoryVolume: {
		"l": "l", "lt": "l", "ltr": "l", "liter": "l", "litre": "l",
		"ml": "ml", "milliliter": "ml", "millilitre": "ml",
		"m3": "m3", "cubic meter": "m3", "cubic metre": "m3", "cbm": "m3",
		"cm3": "cm3", "cc": "cm3", "cubic centimeter": "cm3",
		"gal": "gal", "gallon": "gal", "usg": "gal", "us gal": "gal", "us gallon": "gal",
		"impgal": "impgal", "imp gal": "impgal", "imperial gallon": "impgal", "ukg": "impgal",
		"qt": "qt", "quart": "qt",
		"pt": "pt", "pint": "pt",
		"floz": "floz", "fl oz": "floz", "fluid ounce": "floz",
		"bbl": "bbl", "barrel": "bbl",
	},
	CategoryMass: {
		"kg": "kg", "kilo": "kg", "kilogram": "kg", "kilogramme": "kg", "kgs": "kg",
		"g": "g", "gram": "g", "gramme": "g",
		"mg": "mg", "milligram": "mg",
		"mt": "mt", "t": "mt", "ton": "mt", "tonne": "mt", "metric ton": "mt", "metric tonne": "mt",
		"lb": "lb", "lbs": "lb", "pound": "lb",
		"oz": "oz", "ounce": "oz",
		"st": "st", "stone": "st",
	},
	CategoryDensity: {
		"kg/m3": "kg/m3", "kg per m3": "kg/m3",
		"kg/l": "kg/l", "kg per l": "kg/l", "kg per liter": "kg/l",
		"g/ml": "g/ml", "g per ml": "g/ml",
		"g/l": "g/l", "g per l": "g/l",
		"lb/gal": "lb/gal", "lb per gal": "lb/gal",
		"lb/ft3": "lb/ft3", "lb per ft3": "lb/ft3",
	},
	CategoryTemperature: {
		"c": "c", "celsius": "c", "deg c": "c", "degc": "c", "centigrade": "c",
		"f": "f", "fahrenheit": "f", "deg f": "f", "degf": "f",
		"k": "k", "kelvin": "k",
	},
	CategoryEnergy: {
		"j": "j", "joule": "j",
		"kj": "kj", "kilojoule": "kj",
		"mj": "mj", "megajoule": "mj",
		"wh": "wh", "watt hour": "wh",
		"kwh": "kwh", "kilowatt hour": "kwh",
		"mwh": "mwh", "megawatt hour": "mwh",
		"btu": "btu",
		"cal": "cal", "calorie": "cal",
		"kcal": "kcal", "kilocalorie": "kcal",
	},
	CategoryRate: {
		"km/h": "km/h", "kph": "km/h", "kmh": "km/h", "kmph": "km/h",
		"mph": "mph", "mi/h": "mph",
		"m/s": "m/s", "mps": "m/s",
		"knot": "knot", "kt": "knot", "kn": "knot",
		"ft/s": "ft/s", "fps": "ft/s",
		"mi/min": "mi/min",
	},
	CategoryFlow: {
		"l/min": "l/min", "lpm": "l/min",
		"l/h": "l/h", "lph": "l/h",
		"l/s": "l/s", "lps": "l/s",
		"gal/min": "gal/min", "gpm": "gal/min",
		"gal/h": "gal/h", "gph": "gal/h",
		"m3/h": "m3/h", "cbm/h": "m3/h",
	},
}

// pluralExempt lists whole words whose trailing "s" is not a plural
// marker, plus unit symbols that legitimately end in "s".
var pluralExempt = map[string]bool{
	"celsius":    true,
	"fahrenheit": true,
	"m/s":        true,
	"ft/s":       true,
	"l/s":        true,
	"lps":        true,
	"fps":        true,
	"mps":        true,
	"gas":        true,
}

var unicodeFolder = strings.NewReplacer(
	"³", "3",
	"²", "2",
	"^3", "3",
	"^2", "2",
	"°c", "c",
	"°f", "f",
	"°k", "k",
	"°", "",
)

// fold lowercases, trims, folds unicode shorthand and strips a trailing
// plural "s" unless the word is exempt.
func fold(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = unicodeFolder.Replace(s)
	if len(s) > 1 && strings.HasSuffix(s, "s") && !pluralExempt[s] {
		s = strings.TrimSuffix(s, "s")
	}
	return s
}

// Normalize resolves a free-form unit string to its canonical symbol.
// Unknown strings pass through folded but otherwise unchanged, letting
// the scalar backend reject genuinely unknown units. Normalize never
// fails and is idempotent.
func Normalize(raw string) string {
	folded := fold(raw)
	for _, cat := range categoryOrder {
		if canonical, ok := aliasMaps[cat][folded]; ok {
			return canonical
		}
	}
	return folded
}

// CategoryOf returns the measurement category of a canonical unit
// symbol, scanning categories in the fixed lookup order.
func CategoryOf(unit string) (Category, bool) {
	normalized := Normalize(unit)
	for _, cat := range categoryOrder {
		if _, ok := canonicalSets[cat][normalized]; ok {
			return cat, true
		}
	}
	return "", false
}

// CanonicalUnits returns the canonical unit symbols of a category,
// in a stable order.
func CanonicalUnits(cat Category) []string {
	return append([]string(nil), canonicalLists[cat]...)
}

// Categories returns all categories in their fixed lookup order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

var (
	canonicalSets  map[Category]map[string]struct{}
	canonicalLists map[Category][]string
)

func init() {
	canonicalSets = make(map[Category]map[string]struct{}, len(aliasMaps))
	canonicalLists = make(map[Category][]string, len(aliasMaps))
	for cat, aliases := range aliasMaps {
		set := make(map[string]struct{})
		for _, canonical := range aliases {
			if _, seen := set[canonical]; !seen {
				set[canonical] = struct{}{}
				canonicalLists[cat] = append(canonicalLists[cat], canonical)
			}
		}
		sort.Strings(canonicalLists[cat])
		canonicalSets[cat] = set
	}
}
