package protocol

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/credential"
	"ballotengine/pkg/keys"
	"ballotengine/pkg/ledger"
	"ballotengine/pkg/zkp"
)

func testGroupParams(t *testing.T) *keys.GroupParams {
	t.Helper()
	grp, y, x := testGroup(t)
	return &keys.GroupParams{P: grp.P, G: grp.G, Y: y, X: x}
}

func verifyTallyResult(t *testing.T, grp *bigmath.Group, y *big.Int, result *TallyResult) error {
	t.Helper()
	return zkp.VerifyTally(grp, y, result.FinalCipher, result.Proof)
}

func TestRunTallyNoVotesReturnsSentinel(t *testing.T) {
	gp := testGroupParams(t)
	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	_, err = RunTally(testContext(t), gp, led, 100)
	require.ErrorIs(t, err, ErrNoVotes)
}

func TestRunTallyWeightedOutcome(t *testing.T) {
	rp := testRsaParams(t)
	gp := testGroupParams(t)
	grp := gp.Group()
	ctx := testContext(t)

	verifier, err := credential.NewVerifier(rp, t.TempDir())
	require.NoError(t, err)
	defer verifier.Close()

	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	votes := []int{1, 1, 0}
	weights := []int{5, 3, 2}
	for i := range votes {
		cred, err := RequestCredential(rp, 0, func(blinded *big.Int) (*big.Int, error) {
			return signBlinded(rp, blinded), nil
		})
		require.NoError(t, err)

		ballot, err := CastVote(ctx, grp, gp.Y, votes[i], weights[i])
		require.NoError(t, err)

		_, err = SubmitBallot(ctx, grp, gp.Y, verifier, led, cred, ballot)
		require.NoError(t, err)
	}

	result, err := RunTally(ctx, gp, led, 100)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalVotes)
	require.Equal(t, 10, result.TotalWeight)
	require.Equal(t, 8, result.Result)
	require.NoError(t, verifyTallyResult(t, grp, gp.Y, result))
}

func TestRunTallyDiscardsMalformedEntries(t *testing.T) {
	gp := testGroupParams(t)
	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	_, err = led.Append(ledger.CiphertextToWire(big.NewInt(1), big.NewInt(1)), ledger.OrProofWire{}, "not-a-weight-tag", 0)
	require.NoError(t, err)

	_, err = RunTally(testContext(t), gp, led, 100)
	require.ErrorIs(t, err, ErrNoVotes)
}
