// Package aggregator implements the homomorphic ciphertext operations
// (C4) the tally flow uses to sum encrypted weighted ballots without
// decrypting any individual one.
package aggregator

import (
	"math/big"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/elgamal"
)

// Add computes the pointwise product of a list of ciphertexts. For n
// well-formed ciphertexts encrypting m_1..m_n with independent randomness,
// the product decrypts to Sum(m_i). An empty list returns the identity
// ciphertext (1,1), matching spec.md §4.2.
func Add(grp *bigmath.Group, cts []*elgamal.Ciphertext) *elgamal.Ciphertext {
	alpha := big.NewInt(1)
	beta := big.NewInt(1)
	for _, ct := range cts {
		alpha = grp.Mul(alpha, ct.Alpha)
		beta = grp.Mul(beta, ct.Beta)
	}
	return &elgamal.Ciphertext{Alpha: alpha, Beta: beta}
}

// ScalarShift returns a ciphertext encrypting m+k given a ciphertext
// encrypting m, by multiplying beta by g^k: (alpha, beta*g^k).
func ScalarShift(grp *bigmath.Group, ct *elgamal.Ciphertext, k *big.Int) *elgamal.Ciphertext {
	return &elgamal.Ciphertext{
		Alpha: new(big.Int).Set(ct.Alpha),
		Beta:  grp.Mul(ct.Beta, grp.ExpG(k)),
	}
}

// Rerandomize re-randomizes a ciphertext without changing its plaintext,
// delegating to the elgamal package's implementation of the same
// operation (kept here too since homomorphic aggregation and
// re-randomization are presented together in spec.md §4.2).
func Rerandomize(grp *bigmath.Group, y *big.Int, ct *elgamal.Ciphertext) (*elgamal.Ciphertext, error) {
	return elgamal.Rerandomize(grp, y, ct, nil)
}
