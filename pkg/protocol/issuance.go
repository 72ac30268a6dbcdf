package protocol

import (
	"math/big"

	"golang.org/x/xerrors"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/blindsign"
	"ballotengine/pkg/context"
	"ballotengine/pkg/credential"
	"ballotengine/pkg/keys"
	"ballotengine/pkg/log"
	"ballotengine/pkg/metrics"
)

// ErrInvalidVoterID is returned when the roster does not recognize the
// requesting voter, matching spec.md §7's InvalidVoterId.
var ErrInvalidVoterID = xerrors.New("invalid voter id")

// serialBits is the bit length of a freshly-drawn credential serial,
// matching spec.md §3's "256-bit integer drawn by the voter uniformly at
// random".
const serialBits = 256

// NewSerial draws a uniform random 256-bit serial, the voter's half of
// credential issuance (spec.md §3's Serial).
func NewSerial() (*big.Int, error) {
	bound := new(big.Int).Lsh(big.NewInt(1), serialBits)
	return bigmath.RandomRange(big.NewInt(0), bound)
}

// IssuanceRequest is the signer-side input of C12: a voter's ID (checked
// against the roster, never the serial itself, which the signer never
// sees) and the already-blinded serial produced by the voter's blind
// client (spec.md §6's issuance endpoint input).
type IssuanceRequest struct {
	VoterID       string
	BlindedSerial *big.Int
}

// IssuanceResult is the signer-side output of C12 on success (spec.md
// §6's issuance endpoint output).
type IssuanceResult struct {
	VoterID       string
	SignedBlinded *big.Int
	Weight        int
}

// Issue runs the signer side of credential issuance (C12): it checks
// voter_id against the roster (the only authorization the signer ever
// performs — it never inspects the blinded serial, which is
// cryptographically opaque to it) and signs the blinded serial with the
// RSA blind signer (C5). The serial itself is never recorded here; serial
// uniqueness is enforced later, at ballot acceptance, by the credential
// verifier (C6).
func Issue(ctx *context.OperationContext, rsa *keys.RsaParams, roster Roster, req IssuanceRequest) (*IssuanceResult, error) {
	var result *IssuanceResult
	err := ctx.Recorder.Record("Issuance", metrics.MLogic, func() error {
		voter, ok := roster.Lookup(req.VoterID)
		if !ok {
			return xerrors.Errorf("%w: voter %q not on roster", ErrInvalidVoterID, req.VoterID)
		}

		var signed *big.Int
		if err := ctx.Recorder.Record("SignBlindedSerial", metrics.MCrypto, func() error {
			signed = blindsign.Sign(rsa, req.BlindedSerial)
			return nil
		}); err != nil {
			return err
		}

		log.Debug("Issued credential for voter %s (weight %d)", req.VoterID, voter.Weight)
		result = &IssuanceResult{VoterID: req.VoterID, SignedBlinded: signed, Weight: voter.Weight}
		return nil
	})
	return result, err
}

// RequestCredential runs the voter's side of C12: draw a fresh serial,
// blind it, hand the blinded value to signFn (which round-trips it to
// the signer via whatever transport the caller supplies — out of scope
// here per spec.md §1), and unblind the result into a ready-to-use
// Credential.
func RequestCredential(rsa *keys.RsaParams, coprimeRetries int, signFn func(blinded *big.Int) (*big.Int, error)) (*credential.Credential, error) {
	serial, err := NewSerial()
	if err != nil {
		return nil, xerrors.Errorf("drawing serial: %w", err)
	}

	blinded, r, err := blindsign.Blind(rsa, serial, coprimeRetries)
	if err != nil {
		return nil, xerrors.Errorf("blinding serial: %w", err)
	}

	signedBlinded, err := signFn(blinded)
	if err != nil {
		return nil, xerrors.Errorf("requesting blind signature: %w", err)
	}

	signature, err := blindsign.Unblind(rsa, signedBlinded, r)
	if err != nil {
		return nil, xerrors.Errorf("unblinding signature: %w", err)
	}

	return &credential.Credential{Serial: serial, Signature: signature}, nil
}
