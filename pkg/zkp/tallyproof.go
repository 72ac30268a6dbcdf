package zkp

import (
	"crypto/sha256"
	"math/big"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/elgamal"
)

// tallyProofDomain domain-separates the tally proof's transcript from the
// OR-proof's (see orProofDomain).
const tallyProofDomain = "ballotengine/tally-proof/v1"

// TallyProof is a Chaum-Pedersen proof that log_g(y) == log_A(B/g^m), i.e.
// that m is the correct decryption of the aggregate ciphertext (A,B)
// under the tallier's key whose public half is y (spec.md §4.6).
type TallyProof struct {
	T1, T2 *big.Int
	C      *big.Int
	S      *big.Int
	M      *big.Int
}

// ProveTally generates a tally-correctness proof for the aggregate
// ciphertext ctSum = (A,B), given the declared plaintext m and the
// tallier's private key x.
func ProveTally(grp *bigmath.Group, ctSum *elgamal.Ciphertext, m, x *big.Int) (*TallyProof, error) {
	w, err := grp.RandomExponent()
	if err != nil {
		return nil, err
	}

	t1 := grp.ExpG(w)
	t2 := grp.Exp(ctSum.Alpha, w)

	c := tallyFiatShamirChallenge(grp, ctSum, t1, t2)
	s := grp.ModQ(new(big.Int).Add(w, new(big.Int).Mul(c, x)))

	return &TallyProof{T1: t1, T2: t2, C: c, S: s, M: m}, nil
}

// VerifyTally checks a tally-correctness proof against the group's
// public key y and the aggregate ciphertext ctSum.
func VerifyTally(grp *bigmath.Group, y *big.Int, ctSum *elgamal.Ciphertext, proof *TallyProof) error {
	c := tallyFiatShamirChallenge(grp, ctSum, proof.T1, proof.T2)
	if c.Cmp(proof.C) != 0 {
		return ErrInvalidProof
	}

	// g^s == T1 * y^c
	lhs1 := grp.ExpG(proof.S)
	rhs1 := grp.Mul(proof.T1, grp.Exp(y, proof.C))
	if lhs1.Cmp(rhs1) != 0 {
		return ErrInvalidProof
	}

	// A^s == T2 * (B/g^m)^c
	lhs2 := grp.Exp(ctSum.Alpha, proof.S)
	bOverGM, err := grp.Div(ctSum.Beta, grp.ExpG(proof.M))
	if err != nil {
		return ErrInvalidProof
	}
	rhs2 := grp.Mul(proof.T2, grp.Exp(bOverGM, proof.C))
	if lhs2.Cmp(rhs2) != 0 {
		return ErrInvalidProof
	}
	return nil
}

// tallyFiatShamirChallenge derives c = H(domain, A, B, T1, T2) mod q.
func tallyFiatShamirChallenge(grp *bigmath.Group, ctSum *elgamal.Ciphertext, t1, t2 *big.Int) *big.Int {
	h := sha256.New()
	h.Write([]byte(tallyProofDomain))
	for _, v := range []*big.Int{ctSum.Alpha, ctSum.Beta, t1, t2} {
		h.Write(v.Bytes())
		h.Write([]byte{0})
	}
	digest := h.Sum(nil)
	return grp.ModQ(new(big.Int).SetBytes(digest))
}
