package zkp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/elgamal"
)

func testGroup(t *testing.T) (*bigmath.Group, *big.Int, *big.Int) {
	t.Helper()
	grp := bigmath.NewGroup(big.NewInt(23), big.NewInt(4))
	x := big.NewInt(6)
	return grp, grp.ExpG(x), x
}

func TestOrProofAcceptsBothBranches(t *testing.T) {
	grp, y, _ := testGroup(t)
	v0, v1 := big.NewInt(0), big.NewInt(5)

	for _, b := range []int{0, 1} {
		v := v0
		if b == 1 {
			v = v1
		}
		r, ct, err := elgamal.Encrypt(grp, y, v)
		require.NoError(t, err)

		proof, err := ProveOr(grp, y, ct, v0, v1, b, r)
		require.NoError(t, err)
		require.NoError(t, VerifyOr(grp, y, ct, v0, v1, proof))
	}
}

func TestOrProofRejectsValueOutsideDomain(t *testing.T) {
	grp, y, _ := testGroup(t)
	v0, v1 := big.NewInt(0), big.NewInt(5)

	r, ct, err := elgamal.Encrypt(grp, y, big.NewInt(3))
	require.NoError(t, err)

	// Proof construction never checks that the claimed branch matches what
	// ct actually encodes; only verification catches the mismatch.
	proof, err := ProveOr(grp, y, ct, v0, v1, 0, r)
	require.NoError(t, err)
	require.ErrorIs(t, VerifyOr(grp, y, ct, v0, v1, proof), ErrInvalidProof)
}

func TestOrProofRejectsTamperedResponse(t *testing.T) {
	grp, y, _ := testGroup(t)
	v0, v1 := big.NewInt(0), big.NewInt(5)

	r, ct, err := elgamal.Encrypt(grp, y, v1)
	require.NoError(t, err)
	proof, err := ProveOr(grp, y, ct, v0, v1, 1, r)
	require.NoError(t, err)

	proof.S0 = grp.ModQ(new(big.Int).Add(proof.S0, big.NewInt(1)))
	require.ErrorIs(t, VerifyOr(grp, y, ct, v0, v1, proof), ErrInvalidProof)
}

func TestOrProofRejectsTamperedChallengeSplit(t *testing.T) {
	grp, y, _ := testGroup(t)
	v0, v1 := big.NewInt(0), big.NewInt(5)

	r, ct, err := elgamal.Encrypt(grp, y, v0)
	require.NoError(t, err)
	proof, err := ProveOr(grp, y, ct, v0, v1, 0, r)
	require.NoError(t, err)

	proof.C0 = grp.ModQ(new(big.Int).Add(proof.C0, big.NewInt(1)))
	require.ErrorIs(t, VerifyOr(grp, y, ct, v0, v1, proof), ErrInvalidProof)
}

func TestOrProofRejectsWrongCiphertext(t *testing.T) {
	grp, y, _ := testGroup(t)
	v0, v1 := big.NewInt(0), big.NewInt(5)

	r, ct, err := elgamal.Encrypt(grp, y, v0)
	require.NoError(t, err)
	proof, err := ProveOr(grp, y, ct, v0, v1, 0, r)
	require.NoError(t, err)

	_, otherCt, err := elgamal.Encrypt(grp, y, v0)
	require.NoError(t, err)
	require.ErrorIs(t, VerifyOr(grp, y, otherCt, v0, v1, proof), ErrInvalidProof)
}
