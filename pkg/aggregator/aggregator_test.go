package aggregator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/elgamal"
)

func testSetup(t *testing.T) (*bigmath.Group, *big.Int, *big.Int) {
	t.Helper()
	grp := bigmath.NewGroup(big.NewInt(23), big.NewInt(4))
	x := big.NewInt(6)
	return grp, grp.ExpG(x), x
}

func TestAddEmptyListIsIdentity(t *testing.T) {
	grp, _, _ := testSetup(t)
	ct := Add(grp, nil)
	require.Equal(t, big.NewInt(1), ct.Alpha)
	require.Equal(t, big.NewInt(1), ct.Beta)
}

func TestAddSumsPlaintexts(t *testing.T) {
	grp, y, x := testSetup(t)
	weights := []int64{5, 3, 2}
	var cts []*elgamal.Ciphertext
	for _, w := range weights {
		_, ct, err := elgamal.Encrypt(grp, y, big.NewInt(w))
		require.NoError(t, err)
		cts = append(cts, ct)
	}

	ctSum := Add(grp, cts)
	gm, err := elgamal.Decrypt(grp, ctSum, x)
	require.NoError(t, err)
	m, err := elgamal.Recover(grp, gm, big.NewInt(20))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), m)
}

func TestScalarShift(t *testing.T) {
	grp, y, x := testSetup(t)
	_, ct, err := elgamal.Encrypt(grp, y, big.NewInt(2))
	require.NoError(t, err)

	shifted := ScalarShift(grp, ct, big.NewInt(3))
	require.Equal(t, ct.Alpha, shifted.Alpha)

	gm, err := elgamal.Decrypt(grp, shifted, x)
	require.NoError(t, err)
	m, err := elgamal.Recover(grp, gm, big.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), m)
}

func TestRerandomizePreservesPlaintext(t *testing.T) {
	grp, y, x := testSetup(t)
	_, ct, err := elgamal.Encrypt(grp, y, big.NewInt(4))
	require.NoError(t, err)

	ct2, err := Rerandomize(grp, y, ct)
	require.NoError(t, err)

	gm1, err := elgamal.Decrypt(grp, ct, x)
	require.NoError(t, err)
	gm2, err := elgamal.Decrypt(grp, ct2, x)
	require.NoError(t, err)
	require.Equal(t, gm1, gm2)
}
