package bigmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// testGroup is a small safe-prime group (p=23=2*11+1, q=11, g=4 has
// order 11) used throughout the package tests instead of a real
// 1024/2048-bit group, to keep the arithmetic fast and hand-checkable.
func testGroup(t *testing.T) *Group {
	t.Helper()
	p := big.NewInt(23)
	g := big.NewInt(4)
	grp := NewGroup(p, g)
	require.Equal(t, big.NewInt(11), grp.Q)
	require.Equal(t, big.NewInt(1), new(big.Int).Exp(g, grp.Q, p))
	return grp
}

func TestNewGroupDerivesQ(t *testing.T) {
	grp := testGroup(t)
	require.Equal(t, int64(11), grp.Q.Int64())
}

func TestExpAndExpG(t *testing.T) {
	grp := testGroup(t)
	require.Equal(t, grp.Exp(grp.G, big.NewInt(3)), grp.ExpG(big.NewInt(3)))
	require.Equal(t, big.NewInt(1), grp.ExpG(big.NewInt(0)))
}

func TestInverseRoundTrips(t *testing.T) {
	grp := testGroup(t)
	a := big.NewInt(7)
	inv, err := grp.Inverse(a)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), grp.Mul(a, inv))
}

func TestDivIsMulByInverse(t *testing.T) {
	grp := testGroup(t)
	a, b := big.NewInt(9), big.NewInt(5)
	quotient, err := grp.Div(a, b)
	require.NoError(t, err)
	require.Equal(t, a, grp.Mul(quotient, b))
}

func TestRandomExponentInRange(t *testing.T) {
	grp := testGroup(t)
	for i := 0; i < 50; i++ {
		r, err := grp.RandomExponent()
		require.NoError(t, err)
		require.True(t, r.Cmp(big.NewInt(1)) >= 0)
		require.True(t, r.Cmp(grp.Q) < 0)
	}
}

func TestRandomRangeRejectsEmptySpan(t *testing.T) {
	_, err := RandomRange(big.NewInt(5), big.NewInt(5))
	require.Error(t, err)
	_, err = RandomRange(big.NewInt(5), big.NewInt(1))
	require.Error(t, err)
}

func TestModQNormalizesNegatives(t *testing.T) {
	grp := testGroup(t)
	got := grp.ModQ(big.NewInt(-1))
	require.Equal(t, big.NewInt(10), got)
}
