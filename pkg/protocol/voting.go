package protocol

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/context"
	"ballotengine/pkg/credential"
	"ballotengine/pkg/elgamal"
	"ballotengine/pkg/ledger"
	"ballotengine/pkg/log"
	"ballotengine/pkg/metrics"
	"ballotengine/pkg/zkp"
)

// ErrInvalidCredential covers both a credential whose serial has already
// been consumed and one whose signature does not verify, matching
// spec.md §7's DuplicateSerial/BadSignature -> InvalidCredential mapping.
var ErrInvalidCredential = xerrors.New("invalid credential")

// ErrMalformedBallot is returned when a ballot's weight tag cannot be
// parsed or declares a non-positive weight, matching spec.md §7's
// MalformedBallot.
var ErrMalformedBallot = xerrors.New("malformed ballot")

// weightTagPrefix is the unauthenticated weight-signaling format spec.md
// §9 flags: a plain string the voter emits and the tallier parses,
// cryptographically unbound to the credential or the OR-proof. Kept as
// specified; see DESIGN.md's Open Questions.
const weightTagPrefix = "weight_"

// WeightTag formats a ballot's claimed weight the way spec.md §4.9/§6
// specifies: "weight_<k>".
func WeightTag(weight int) string {
	return fmt.Sprintf("%s%d", weightTagPrefix, weight)
}

// ParseWeightTag parses a weight tag, rejecting anything malformed or
// non-positive (spec.md §4.9: "discard if malformed or non-positive").
func ParseWeightTag(tag string) (int, error) {
	rest, ok := strings.CutPrefix(tag, weightTagPrefix)
	if !ok {
		return 0, xerrors.Errorf("%w: weight tag %q missing %q prefix", ErrMalformedBallot, tag, weightTagPrefix)
	}
	weight, err := strconv.Atoi(rest)
	if err != nil {
		return 0, xerrors.Errorf("%w: weight tag %q is not an integer: %v", ErrMalformedBallot, tag, err)
	}
	if weight <= 0 {
		return 0, xerrors.Errorf("%w: weight tag %q is non-positive", ErrMalformedBallot, tag)
	}
	return weight, nil
}

// Ballot is a weighted ballot (spec.md §3): an encrypted vote scaled by
// weight, a well-formedness proof over the scaled domain {0, weight}, and
// the unauthenticated weight tag.
type Ballot struct {
	Ciphertext *elgamal.Ciphertext
	OrProof    *zkp.OrProof
	WeightTag  string
}

// CastVote runs the voter's side of C13: given a 0/1 vote and the voter's
// registered weight, encrypt v*weight under the tallier's public key and
// prove the ciphertext encodes 0 or weight, without revealing which
// (spec.md §4.9). The OR-proof's disjuncts are {0, weight}, not {0, 1} —
// ballots are scaled before encryption, not after.
func CastVote(ctx *context.OperationContext, grp *bigmath.Group, y *big.Int, vote int, weight int) (*Ballot, error) {
	if vote != 0 && vote != 1 {
		return nil, xerrors.Errorf("vote must be 0 or 1, got %d", vote)
	}
	if weight <= 0 {
		return nil, xerrors.Errorf("weight must be positive, got %d", weight)
	}

	var ballot *Ballot
	err := ctx.Recorder.Record("CastVote", metrics.MLogic, func() error {
		scaled := big.NewInt(int64(vote * weight))
		zero := big.NewInt(0)
		w := big.NewInt(int64(weight))

		var r *big.Int
		var ct *elgamal.Ciphertext
		var err error
		if err = ctx.Recorder.Record("Encrypt", metrics.MCrypto, func() error {
			r, ct, err = elgamal.Encrypt(grp, y, scaled)
			return err
		}); err != nil {
			return err
		}

		var proof *zkp.OrProof
		if err = ctx.Recorder.Record("ProveWellFormed", metrics.MCrypto, func() error {
			proof, err = zkp.ProveOr(grp, y, ct, zero, w, vote, r)
			return err
		}); err != nil {
			return err
		}

		ballot = &Ballot{Ciphertext: ct, OrProof: proof, WeightTag: WeightTag(weight)}
		return nil
	})
	return ballot, err
}

// SubmitBallot runs the server side of ballot acceptance: it verifies the
// presented credential and the ballot's well-formedness proof, then
// appends the ballot to the ledger. Lock order follows spec.md §5: the
// credential verifier is consulted before the ledger is touched. An
// invalid credential or proof rejects the ballot without appending it to
// the ledger. The verifier records the serial as used before the proof is
// checked, so a ballot rejected for its proof still consumes its
// credential.
func SubmitBallot(ctx *context.OperationContext, grp *bigmath.Group, y *big.Int, verifier *credential.Verifier, led *ledger.Ledger, cred *credential.Credential, ballot *Ballot) (*ledger.AppendResult, error) {
	var result *ledger.AppendResult
	err := ctx.Recorder.Record("SubmitBallot", metrics.MLogic, func() error {
		if err := ctx.Recorder.Record("VerifyCredential", metrics.MCrypto, func() error {
			return verifier.Verify(cred)
		}); err != nil {
			log.Debug("Rejecting ballot: %v", err)
			return xerrors.Errorf("%w: %v", ErrInvalidCredential, err)
		}

		weight, err := ParseWeightTag(ballot.WeightTag)
		if err != nil {
			return err
		}

		if err := ctx.Recorder.Record("VerifyWellFormed", metrics.MCrypto, func() error {
			return zkp.VerifyOr(grp, y, ballot.Ciphertext, big.NewInt(0), big.NewInt(int64(weight)), ballot.OrProof)
		}); err != nil {
			log.Debug("Rejecting ballot: %v", err)
			return err
		}

		if err := ctx.Recorder.Record("LedgerAppend", metrics.MDiskWrite, func() error {
			ctWire := ledger.CiphertextToWire(ballot.Ciphertext.Alpha, ballot.Ciphertext.Beta)
			proofWire := orProofToWire(ballot.OrProof)
			var appendErr error
			result, appendErr = led.Append(ctWire, proofWire, ballot.WeightTag, weight)
			return appendErr
		}); err != nil {
			return err
		}

		log.Info("Accepted ballot at index %d (weight %d)", result.Index, weight)
		return nil
	})
	return result, err
}

// orProofToWire converts a zkp.OrProof into its decimal-string ledger
// wire shape (spec.md §6).
func orProofToWire(p *zkp.OrProof) ledger.OrProofWire {
	return ledger.OrProofWire{
		A0: p.A0.Text(10), B0: p.B0.Text(10),
		A1: p.A1.Text(10), B1: p.B1.Text(10),
		C0: p.C0.Text(10), C1: p.C1.Text(10),
		S0: p.S0.Text(10), S1: p.S1.Text(10),
	}
}

// orProofFromWire parses a ledger.OrProofWire back into a zkp.OrProof.
func orProofFromWire(w ledger.OrProofWire) (*zkp.OrProof, error) {
	fields := map[string]string{"a0": w.A0, "b0": w.B0, "a1": w.A1, "b1": w.B1, "c0": w.C0, "c1": w.C1, "s0": w.S0, "s1": w.S1}
	parsed := make(map[string]*big.Int, len(fields))
	for name, s := range fields {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, xerrors.Errorf("%w: invalid decimal integer for proof field %q", ErrMalformedBallot, name)
		}
		parsed[name] = v
	}
	return &zkp.OrProof{
		A0: parsed["a0"], B0: parsed["b0"],
		A1: parsed["a1"], B1: parsed["b1"],
		C0: parsed["c0"], C1: parsed["c1"],
		S0: parsed["s0"], S1: parsed["s1"],
	}, nil
}

// ciphertextFromWire parses a ledger.CiphertextWire back into an
// elgamal.Ciphertext.
func ciphertextFromWire(w ledger.CiphertextWire) (*elgamal.Ciphertext, error) {
	alpha, ok := new(big.Int).SetString(w.Alpha, 10)
	if !ok {
		return nil, xerrors.Errorf("%w: invalid decimal integer for alpha", ErrMalformedBallot)
	}
	beta, ok := new(big.Int).SetString(w.Beta, 10)
	if !ok {
		return nil, xerrors.Errorf("%w: invalid decimal integer for beta", ErrMalformedBallot)
	}
	return &elgamal.Ciphertext{Alpha: alpha, Beta: beta}, nil
}
