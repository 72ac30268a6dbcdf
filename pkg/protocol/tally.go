package protocol

import (
	"math/big"

	"golang.org/x/xerrors"

	"ballotengine/pkg/aggregator"
	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/concurrency"
	"ballotengine/pkg/context"
	"ballotengine/pkg/elgamal"
	"ballotengine/pkg/keys"
	"ballotengine/pkg/ledger"
	"ballotengine/pkg/log"
	"ballotengine/pkg/metrics"
	"ballotengine/pkg/zkp"
)

// ErrNoVotes is returned when the ledger has no valid ballots to tally,
// matching spec.md §4.9/§7: "not an error to callers; distinct empty
// result".
var ErrNoVotes = xerrors.New("no votes")

// ErrDecryptionOutOfRange wraps elgamal.ErrOutOfRange for the tally flow,
// matching spec.md §7: indicates a ledger-admitted ballot that should
// have been impossible under a valid OR-proof.
var ErrDecryptionOutOfRange = xerrors.New("decryption out of range")

// TallyResult is the outcome of C14 (spec.md §6's tally endpoint output):
// the vote/weight counts, the declared result, the aggregate ciphertext,
// and the Chaum-Pedersen proof that it decrypts to that result.
type TallyResult struct {
	TotalVotes  int
	TotalWeight int
	Result      int
	Proof       *zkp.TallyProof
	FinalCipher *elgamal.Ciphertext
}

// RunTally runs C14: scan the ledger, discard any entry whose OR-proof or
// weight tag does not hold up, homomorphically aggregate the survivors,
// recover the total by bounded discrete-log search, and emit a
// Chaum-Pedersen proof of correct decryption (spec.md §4.9).
func RunTally(ctx *context.OperationContext, grp *keys.GroupParams, led *ledger.Ledger, maxWeight uint64) (*TallyResult, error) {
	var result *TallyResult
	err := ctx.Recorder.Record("Tally", metrics.MLogic, func() error {
		group := grp.Group()

		var entries []ledger.Entry
		if err := ctx.Recorder.Record("TallyScan", metrics.MDiskRead, func() error {
			entries = led.Scan()
			return nil
		}); err != nil {
			return err
		}

		var validCiphertexts []*elgamal.Ciphertext
		var totalWeight int
		if err := ctx.Recorder.Record("TallyVerifyAndFilter", metrics.MCrypto, func() error {
			cts, weights, verr := verifyAndFilter(ctx, group, grp.Y, entries)
			validCiphertexts = cts
			for _, w := range weights {
				totalWeight += w
			}
			return verr
		}); err != nil {
			return err
		}

		if len(validCiphertexts) == 0 {
			return ErrNoVotes
		}

		var ctSum *elgamal.Ciphertext
		if err := ctx.Recorder.Record("TallyAggregate", metrics.MCrypto, func() error {
			ctSum = aggregator.Add(group, validCiphertexts)
			return nil
		}); err != nil {
			return err
		}

		bound := big.NewInt(int64(totalWeight))
		if maxWeight > 0 && bound.Cmp(new(big.Int).SetUint64(maxWeight)) < 0 {
			bound = new(big.Int).SetUint64(maxWeight)
		}

		var m *big.Int
		if err := ctx.Recorder.Record("TallyDecrypt", metrics.MCrypto, func() error {
			var derr error
			m, derr = elgamal.DecryptAndRecover(group, ctSum, grp.X, bound)
			return derr
		}); err != nil {
			if xerrors.Is(err, elgamal.ErrOutOfRange) {
				return xerrors.Errorf("%w: %v", ErrDecryptionOutOfRange, err)
			}
			return err
		}

		var proof *zkp.TallyProof
		if err := ctx.Recorder.Record("TallyProve", metrics.MCrypto, func() error {
			var perr error
			proof, perr = zkp.ProveTally(group, ctSum, m, grp.X)
			return perr
		}); err != nil {
			return err
		}

		log.Info("Tally complete: %d votes, total weight %d, result %d", len(validCiphertexts), totalWeight, m.Int64())
		result = &TallyResult{
			TotalVotes:  len(validCiphertexts),
			TotalWeight: totalWeight,
			Result:      int(m.Int64()),
			Proof:       proof,
			FinalCipher: ctSum,
		}
		return nil
	})
	return result, err
}

// verifyAndFilter checks every ledger entry's OR-proof and weight tag,
// discarding (not erroring on) malformed or invalid ones, matching
// spec.md §4.9's "verify OR-proof (discard on failure) and parse the
// weight from weight_tag (discard if malformed or non-positive)". Entries
// are checked via pkg/concurrency.Map, which runs them in parallel when
// more than one core is configured and there are at least 101 entries
// (verification of one entry never depends on another's), and
// sequentially otherwise.
func verifyAndFilter(ctx *context.OperationContext, grp *bigmath.Group, y *big.Int, entries []ledger.Entry) ([]*elgamal.Ciphertext, []int, error) {
	type outcome struct {
		ct     *elgamal.Ciphertext
		weight int
		ok     bool
	}

	if len(entries) == 0 {
		return nil, nil, nil
	}

	outcomes, err := concurrency.Map(ctx, entries, func(e ledger.Entry) (outcome, error) {
		weight, werr := ParseWeightTag(e.WeightSignature)
		if werr != nil {
			log.Debug("Discarding ledger entry %d: %v", e.Index, werr)
			return outcome{}, nil
		}
		ct, cerr := ciphertextFromWire(e.Ciphertext)
		if cerr != nil {
			log.Debug("Discarding ledger entry %d: %v", e.Index, cerr)
			return outcome{}, nil
		}
		proof, perr := orProofFromWire(e.OrProof)
		if perr != nil {
			log.Debug("Discarding ledger entry %d: %v", e.Index, perr)
			return outcome{}, nil
		}
		if verr := zkp.VerifyOr(grp, y, ct, big.NewInt(0), big.NewInt(int64(weight)), proof); verr != nil {
			log.Debug("Discarding ledger entry %d: %v", e.Index, verr)
			return outcome{}, nil
		}
		return outcome{ct: ct, weight: weight, ok: true}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	cts := make([]*elgamal.Ciphertext, 0, len(outcomes))
	weights := make([]int, 0, len(outcomes))
	for _, o := range outcomes {
		if o.ok {
			cts = append(cts, o.ct)
			weights = append(weights, o.weight)
		}
	}
	return cts, weights, nil
}
