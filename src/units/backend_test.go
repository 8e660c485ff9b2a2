package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSameUnitIsExact(t *testing.T) {
	conv := NewConverter()
	for _, unit := range []string{"l", "gal", "kg", "c", "km/h"} {
		got, err := conv.Convert(123.456, unit, unit)
		require.NoError(t, err)
		assert.Equal(t, 123.456, got, "same-unit conversion must be exact for %q", unit)
	}
}

func TestConvertKnownFactors(t *testing.T) {
	conv := NewConverter()
	tests := []struct {
		value    float64
		from, to string
		expected float64
	}{
		{1, "gal", "l", 3.785411784},
		{1, "usg", "liters", 3.785411784},
		{1000, "l", "m3", 1},
		{1, "bbl", "gal", 42},
		{1, "mt", "kg", 1000},
		{1, "lb", "kg", 0.45359237},
		{40, "km/h", "mph", 24.854847689493362},
		{1, "kwh", "mj", 3.6},
		{1, "m3/h", "l/min", 16.666666666666668},
		{1, "kg/l", "kg/m3", 1000},
	}
	for _, tt := range tests {
		got, err := conv.Convert(tt.value, tt.from, tt.to)
		require.NoError(t, err, "%g %s → %s", tt.value, tt.from, tt.to)
		assert.InEpsilon(t, tt.expected, got, 1e-9, "%g %s → %s", tt.value, tt.from, tt.to)
	}
}

func TestConvertTemperature(t *testing.T) {
	conv := NewConverter()

	f, err := conv.Convert(100, "°C", "°F")
	require.NoError(t, err)
	assert.InDelta(t, 212, f, 1e-9)

	k, err := conv.Convert(0, "celsius", "kelvin")
	require.NoError(t, err)
	assert.InDelta(t, 273.15, k, 1e-9)

	c, err := conv.Convert(32, "f", "c")
	require.NoError(t, err)
	assert.InDelta(t, 0, c, 1e-9)
}

func TestConvertRoundTrips(t *testing.T) {
	conv := NewConverter()
	pairs := [][2]string{
		{"l", "gal"},
		{"kg", "lb"},
		{"km", "mi"},
		{"c", "f"},
		{"kwh", "btu"},
	}
	for _, pair := range pairs {
		forward, err := conv.Convert(17.3, pair[0], pair[1])
		require.NoError(t, err)
		back, err := conv.Convert(forward, pair[1], pair[0])
		require.NoError(t, err)
		assert.InDelta(t, 17.3, back, 17.3*1e-6, "round trip %s ↔ %s", pair[0], pair[1])
	}
}

func TestConvertRejectsIncompatibleAndUnknownUnits(t *testing.T) {
	conv := NewConverter()

	_, err := conv.Convert(1, "l", "kg")
	assert.ErrorContains(t, err, "incompatible")

	_, err = conv.Convert(1, "flibber", "l")
	assert.ErrorContains(t, err, "unknown unit")

	// mi/min is aliased but has no direct factor; only the engine's
	// fixed chain reaches it.
	_, err = conv.Convert(1, "km/h", "mi/min")
	require.Error(t, err)
}
