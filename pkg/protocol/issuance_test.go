package protocol

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ballotengine/pkg/config"
	"ballotengine/pkg/context"
	"ballotengine/pkg/keys"
	"ballotengine/pkg/metrics"
)

func testContext(t *testing.T) *context.OperationContext {
	t.Helper()
	return context.NewContext(&config.Config{}, metrics.NewRecorder())
}

// testRsaParams generates a 512-bit RSA key: large enough that both a
// 256-bit serial and Blind's 128-bit blinding factor lie below n.
func testRsaParams(t *testing.T) *keys.RsaParams {
	t.Helper()
	rp, err := keys.GenerateRsaParams(512)
	require.NoError(t, err)
	return rp
}

func TestNewSerialIsWithinBitBound(t *testing.T) {
	serial, err := NewSerial()
	require.NoError(t, err)
	require.True(t, serial.Sign() >= 0)
	require.True(t, serial.BitLen() <= serialBits)
}

func TestIssueRejectsUnknownVoter(t *testing.T) {
	rp := testRsaParams(t)
	roster := MapRoster{}

	_, err := Issue(testContext(t), rp, roster, IssuanceRequest{VoterID: "ghost", BlindedSerial: big.NewInt(1)})
	require.ErrorIs(t, err, ErrInvalidVoterID)
}

func TestIssueAndRequestCredentialRoundTrip(t *testing.T) {
	rp := testRsaParams(t)
	roster := MapRoster{
		"voter-1": {VoterID: "voter-1", Weight: 7},
	}
	ctx := testContext(t)

	cred, err := RequestCredential(rp, 0, func(blinded *big.Int) (*big.Int, error) {
		result, err := Issue(ctx, rp, roster, IssuanceRequest{VoterID: "voter-1", BlindedSerial: blinded})
		if err != nil {
			return nil, err
		}
		require.Equal(t, 7, result.Weight)
		return result.SignedBlinded, nil
	})
	require.NoError(t, err)

	recovered := new(big.Int).Exp(cred.Signature, rp.E, rp.N)
	require.Equal(t, cred.Serial, recovered)
}
