package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	a, err := Parse("10.50")
	require.NoError(t, err)
	require.Equal(t, "10.5", a.String())

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("not-a-number")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCmpAndArithmetic(t *testing.T) {
	a := MustParse("10")
	b := MustParse("4.5")
	require.Equal(t, 1, a.Cmp(b))
	require.Equal(t, "14.5", a.Add(b).String())
	require.Equal(t, "5.5", a.Sub(b).String())
	require.Equal(t, "45", a.Mul(b).String())
}

func TestScaleToUnitsRoundTrip(t *testing.T) {
	a := MustParse("1.23")
	units, err := a.ScaleToUnits(6)
	require.NoError(t, err)
	require.Equal(t, "1230000", units.String())

	back := FromUnits(units, 6)
	require.Equal(t, "1.23", back.String())
}

func TestScaleToUnitsRounding(t *testing.T) {
	a := MustParse("0.0000005")
	units, err := a.ScaleToUnits(6)
	require.NoError(t, err)
	require.Equal(t, "1", units.String())
}
