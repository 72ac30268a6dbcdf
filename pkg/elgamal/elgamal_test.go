package elgamal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ballotengine/pkg/bigmath"
)

// testGroup returns a small (p=23, q=11, g=4) group and a tallier
// keypair x=6, y=g^x mod p=2, fast enough to exhaust by linear search in
// tests without needing a real 1024+-bit group.
func testGroup(t *testing.T) (*bigmath.Group, *big.Int, *big.Int) {
	t.Helper()
	grp := bigmath.NewGroup(big.NewInt(23), big.NewInt(4))
	x := big.NewInt(6)
	y := grp.ExpG(x)
	require.Equal(t, big.NewInt(2), y)
	return grp, y, x
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	grp, y, x := testGroup(t)
	for m := int64(0); m < 5; m++ {
		_, ct, err := Encrypt(grp, y, big.NewInt(m))
		require.NoError(t, err)

		gm, err := Decrypt(grp, ct, x)
		require.NoError(t, err)
		require.Equal(t, grp.ExpG(big.NewInt(m)), gm)

		recovered, err := Recover(grp, gm, big.NewInt(10))
		require.NoError(t, err)
		require.Equal(t, big.NewInt(m), recovered)
	}
}

func TestRecoverOutOfRangeFails(t *testing.T) {
	grp, y, x := testGroup(t)
	_, ct, err := Encrypt(grp, y, big.NewInt(9))
	require.NoError(t, err)
	gm, err := Decrypt(grp, ct, x)
	require.NoError(t, err)

	_, err = Recover(grp, gm, big.NewInt(3))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestHomomorphicSum(t *testing.T) {
	grp, y, x := testGroup(t)
	values := []int64{2, 0, 3}
	alpha, beta := big.NewInt(1), big.NewInt(1)
	for _, v := range values {
		_, ct, err := Encrypt(grp, y, big.NewInt(v))
		require.NoError(t, err)
		alpha = grp.Mul(alpha, ct.Alpha)
		beta = grp.Mul(beta, ct.Beta)
	}
	ctSum := &Ciphertext{Alpha: alpha, Beta: beta}

	gm, err := Decrypt(grp, ctSum, x)
	require.NoError(t, err)
	recovered, err := Recover(grp, gm, big.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), recovered)
}

func TestRerandomizePreservesPlaintext(t *testing.T) {
	grp, y, x := testGroup(t)
	r, ct, err := Encrypt(grp, y, big.NewInt(3))
	require.NoError(t, err)

	rPrime, err := grp.RandomExponent()
	require.NoError(t, err)
	ct2, err := Rerandomize(grp, y, ct, rPrime)
	require.NoError(t, err)
	require.NotEqual(t, ct.Alpha, ct2.Alpha)

	gm1, err := Decrypt(grp, ct, x)
	require.NoError(t, err)
	gm2, err := Decrypt(grp, ct2, x)
	require.NoError(t, err)
	require.Equal(t, gm1, gm2)

	require.NotEqual(t, r, rPrime)
}
