// Package zkp implements the engine's two zero-knowledge proofs: the
// disjunctive OR-proof of ballot well-formedness (C7) and the
// Chaum-Pedersen tally-correctness proof (C8).
//
// Both proofs are made non-interactive via the Fiat-Shamir transform over
// a domain-separated SHA-256 transcript hash, the way
// takakv-msc-poc/voteproof/voteproof.go derives its challenge. spec.md §9
// explicitly requires this upgrade from the interactive challenge used by
// the system this engine was distilled from, and requires every challenge
// and response to be reduced mod q (the subgroup order), never mod p —
// the source's occasional p/q confusion is a bug, not a behavior to
// replicate.
package zkp

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/xerrors"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/elgamal"
)

// ErrInvalidProof is returned by VerifyOr or VerifyTally when an OR-proof
// or tally proof fails to verify, matching spec.md §7's InvalidProof.
var ErrInvalidProof = xerrors.New("invalid proof")

// orProofDomain domain-separates the OR-proof's Fiat-Shamir transcript
// from the tally proof's, so the two proof types can never be confused
// for one another even if their transcript values happened to collide.
const orProofDomain = "ballotengine/or-proof/v1"

// OrProof attests that a ciphertext encodes one of two public values
// {v0, v1} (here {0, w} for ballot weight w), without revealing which.
type OrProof struct {
	A0, B0 *big.Int
	A1, B1 *big.Int
	C0, C1 *big.Int
	S0, S1 *big.Int
}

// ProveOr generates a non-interactive OR-proof that ct encodes v0 or v1
// under public key y, given the prover knows plaintext v (v0 or v1,
// identified by bit b: b=0 means v=v0, b=1 means v=v1) and the encryption
// randomness r used to build ct (ct.Alpha = g^r, ct.Beta = g^v * y^r).
func ProveOr(grp *bigmath.Group, y *big.Int, ct *elgamal.Ciphertext, v0, v1 *big.Int, b int, r *big.Int) (*OrProof, error) {
	if b != 0 && b != 1 {
		return nil, xerrors.Errorf("invalid branch indicator %d", b)
	}

	falseVal := v1
	if b == 1 {
		falseVal = v0
	}

	// Step 1: commitment randomness for the true branch, and simulated
	// challenge/response for the false branch (spec.md §4.5 step 1).
	w, err := grp.RandomExponent()
	if err != nil {
		return nil, err
	}
	cFalse, err := grp.RandomExponent()
	if err != nil {
		return nil, err
	}
	sFalse, err := grp.RandomExponent()
	if err != nil {
		return nil, err
	}

	// True-branch commitments: A_b = g^w, B_b = y^w.
	aTrue := grp.ExpG(w)
	bTrue := grp.Exp(y, w)

	// False-branch simulated commitments (spec.md §4.5 step 2):
	// A_{1-b} = g^{s} * alpha^{-c},  B_{1-b} = y^{s} * (beta/g^{v_false})^{-c}.
	aFalse, err := simulateA(grp, sFalse, cFalse, ct.Alpha)
	if err != nil {
		return nil, err
	}
	bFalse, err := simulateB(grp, y, sFalse, cFalse, ct.Beta, falseVal)
	if err != nil {
		return nil, err
	}

	var a0, b0, a1, b1 *big.Int
	if b == 0 {
		a0, b0 = aTrue, bTrue
		a1, b1 = aFalse, bFalse
	} else {
		a0, b0 = aFalse, bFalse
		a1, b1 = aTrue, bTrue
	}

	// Step 3: Fiat-Shamir challenge over the full transcript.
	c := fiatShamirChallenge(grp, y, ct, a0, b0, a1, b1)

	// Step 4: split the challenge and compute the true branch's response.
	var c0, c1, s0, s1 *big.Int
	if b == 0 {
		c0 = grp.ModQ(new(big.Int).Sub(c, cFalse))
		s0 = grp.ModQ(new(big.Int).Add(w, new(big.Int).Mul(c0, r)))
		c1, s1 = cFalse, sFalse
	} else {
		c1 = grp.ModQ(new(big.Int).Sub(c, cFalse))
		s1 = grp.ModQ(new(big.Int).Add(w, new(big.Int).Mul(c1, r)))
		c0, s0 = cFalse, sFalse
	}

	return &OrProof{A0: a0, B0: b0, A1: a1, B1: b1, C0: c0, C1: c1, S0: s0, S1: s1}, nil
}

// VerifyOr checks an OR-proof that ct encodes v0 or v1 under public key y.
func VerifyOr(grp *bigmath.Group, y *big.Int, ct *elgamal.Ciphertext, v0, v1 *big.Int, proof *OrProof) error {
	c := fiatShamirChallenge(grp, y, ct, proof.A0, proof.B0, proof.A1, proof.B1)
	sum := grp.ModQ(new(big.Int).Add(proof.C0, proof.C1))
	if sum.Cmp(grp.ModQ(c)) != 0 {
		return ErrInvalidProof
	}

	if !checkBranch(grp, y, ct, v0, proof.A0, proof.B0, proof.C0, proof.S0) {
		return ErrInvalidProof
	}
	if !checkBranch(grp, y, ct, v1, proof.A1, proof.B1, proof.C1, proof.S1) {
		return ErrInvalidProof
	}
	return nil
}

// checkBranch verifies g^s = A * alpha^c and y^s = B * (beta/g^v)^c.
func checkBranch(grp *bigmath.Group, y *big.Int, ct *elgamal.Ciphertext, v, a, b, c, s *big.Int) bool {
	lhsA := grp.ExpG(s)
	rhsA := grp.Mul(a, grp.Exp(ct.Alpha, c))
	if lhsA.Cmp(rhsA) != 0 {
		return false
	}

	lhsB := grp.Exp(y, s)
	betaOverGV, err := grp.Div(ct.Beta, grp.ExpG(v))
	if err != nil {
		return false
	}
	rhsB := grp.Mul(b, grp.Exp(betaOverGV, c))
	return lhsB.Cmp(rhsB) == 0
}

// simulateA computes A = g^s * alpha^-c mod p.
func simulateA(grp *bigmath.Group, s, c, alpha *big.Int) (*big.Int, error) {
	gs := grp.ExpG(s)
	alphaC := grp.Exp(alpha, c)
	return grp.Div(gs, alphaC)
}

// simulateB computes B = y^s * (beta/g^v)^-c mod p.
func simulateB(grp *bigmath.Group, y, s, c, beta, v *big.Int) (*big.Int, error) {
	ys := grp.Exp(y, s)
	betaOverGV, err := grp.Div(beta, grp.ExpG(v))
	if err != nil {
		return nil, err
	}
	denom := grp.Exp(betaOverGV, c)
	return grp.Div(ys, denom)
}

// fiatShamirChallenge derives c = H(domain, g, y, alpha, beta, A0, B0, A1, B1) mod q,
// the domain-separated transcript hash spec.md §9 requires in place of the
// interactive random challenge.
func fiatShamirChallenge(grp *bigmath.Group, y *big.Int, ct *elgamal.Ciphertext, a0, b0, a1, b1 *big.Int) *big.Int {
	h := sha256.New()
	h.Write([]byte(orProofDomain))
	for _, v := range []*big.Int{grp.G, y, ct.Alpha, ct.Beta, a0, b0, a1, b1} {
		h.Write(v.Bytes())
		h.Write([]byte{0})
	}
	digest := h.Sum(nil)
	c := new(big.Int).SetBytes(digest)
	return grp.ModQ(c)
}
