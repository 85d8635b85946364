package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestSelectPrice(t *testing.T) {
	require.Equal(t, 75.0, SelectPrice(f(75), f(100)))
	require.Equal(t, 100.0, SelectPrice(nil, f(100)))
	require.Equal(t, 0.0, SelectPrice(nil, nil))

	// A zero promo price is a real promotion, not an absent value.
	require.Equal(t, 0.0, SelectPrice(f(0), f(100)))
}

func TestEffectivePrice(t *testing.T) {
	p := Product{StandardPrice: 120}
	require.Equal(t, 120.0, p.EffectivePrice())
	p.PromoPrice = f(99.5)
	require.Equal(t, 99.5, p.EffectivePrice())

	k := Kit{StandardPrice: 300, PromoPrice: f(250)}
	require.Equal(t, 250.0, k.EffectivePrice())
}
