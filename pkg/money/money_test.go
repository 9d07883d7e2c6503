package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" 150000.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("150000.5")))

	_, err = Parse("")
	require.Error(t, err)

	_, err = Parse("abc")
	require.Error(t, err)

	_, err = Parse("10.001")
	require.Error(t, err)
}

func TestHasValidScale(t *testing.T) {
	assert.True(t, HasValidScale(decimal.RequireFromString("10.25")))
	assert.True(t, HasValidScale(FromInt(500000)))
	assert.False(t, HasValidScale(decimal.RequireFromString("0.005")))
}

func TestIsValidPositive(t *testing.T) {
	assert.True(t, IsValidPositive(FromInt(1)))
	assert.False(t, IsValidPositive(decimal.Zero))
	assert.False(t, IsValidPositive(FromInt(-5)))
	assert.False(t, IsValidPositive(decimal.RequireFromString("1.999")))
}

func TestSumMinOutstanding(t *testing.T) {
	total := Sum(FromInt(100000), FromInt(100000), decimal.RequireFromString("0.50"))
	assert.Equal(t, "200000.50", Format(total))

	assert.True(t, Min(FromInt(3), FromInt(7)).Equal(FromInt(3)))
	assert.True(t, Min(FromInt(9), FromInt(7)).Equal(FromInt(7)))

	assert.True(t, Outstanding(FromInt(500000), FromInt(200000)).Equal(FromInt(300000)))
	assert.True(t, Outstanding(FromInt(100), FromInt(150)).IsZero())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.00", Format(FromInt(1)))
	assert.Equal(t, "0.10", Format(decimal.RequireFromString("0.1")))
}
