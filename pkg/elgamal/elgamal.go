// Package elgamal implements exponential ElGamal encryption over a
// safe-prime group (C3): encryption, decryption to g^m, bounded
// discrete-log recovery, and re-randomization.
package elgamal

import (
	"math/big"

	"golang.org/x/xerrors"

	"ballotengine/pkg/bigmath"
)

// Ciphertext is the pair (alpha, beta) = (g^r, g^m * y^r).
type Ciphertext struct {
	Alpha *big.Int
	Beta  *big.Int
}

// ErrOutOfRange is returned by Recover when no plaintext in [0, bound]
// matches the decrypted g^m, matching spec.md's DecryptionOutOfRange.
var ErrOutOfRange = xerrors.New("decryption out of range")

// Encrypt draws fresh randomness r in [1, q-1) and returns the ciphertext
// encrypting m under the public key y: (g^r, g^m * y^r mod p). m must be a
// non-negative integer; callers are responsible for keeping it within the
// bound the tally side can later recover (spec.md §4.1).
func Encrypt(grp *bigmath.Group, y, m *big.Int) (r *big.Int, ct *Ciphertext, err error) {
	r, err = grp.RandomExponent()
	if err != nil {
		return nil, nil, err
	}
	ct, err = EncryptWithRandomness(grp, y, m, r)
	return r, ct, err
}

// EncryptWithRandomness encrypts m under y using the supplied randomness
// r, for callers (e.g. the OR-proof prover) that must know r afterward.
func EncryptWithRandomness(grp *bigmath.Group, y, m, r *big.Int) (*Ciphertext, error) {
	alpha := grp.ExpG(r)
	yr := grp.Exp(y, r)
	gm := grp.ExpG(m)
	beta := grp.Mul(gm, yr)
	return &Ciphertext{Alpha: alpha, Beta: beta}, nil
}

// Decrypt recovers g^m from a ciphertext using the tallier's private key x:
// beta * (alpha^x)^-1 mod p.
func Decrypt(grp *bigmath.Group, ct *Ciphertext, x *big.Int) (*big.Int, error) {
	s := grp.Exp(ct.Alpha, x)
	sInv, err := grp.Inverse(s)
	if err != nil {
		return nil, xerrors.Errorf("decrypting ciphertext: %w", err)
	}
	return grp.Mul(ct.Beta, sInv), nil
}

// Recover solves g^m = gm for the exponent m by linear search over
// [0, bound], matching spec.md's explicit small-range discrete-log
// recovery rationale (weighted-ballot totals are small enough to search
// exhaustively). Returns ErrOutOfRange if no match is found within bound.
func Recover(grp *bigmath.Group, gm *big.Int, bound *big.Int) (*big.Int, error) {
	accum := big.NewInt(1)
	m := big.NewInt(0)
	one := big.NewInt(1)
	for m.Cmp(bound) <= 0 {
		if accum.Cmp(gm) == 0 {
			return new(big.Int).Set(m), nil
		}
		accum = grp.Mul(accum, grp.G)
		m = new(big.Int).Add(m, one)
	}
	return nil, ErrOutOfRange
}

// DecryptAndRecover is the common compose of Decrypt followed by Recover.
func DecryptAndRecover(grp *bigmath.Group, ct *Ciphertext, x, bound *big.Int) (*big.Int, error) {
	gm, err := Decrypt(grp, ct, x)
	if err != nil {
		return nil, err
	}
	return Recover(grp, gm, bound)
}

// Rerandomize returns a new ciphertext encrypting the same plaintext as ct
// under fresh randomness r', semantically idempotent on the plaintext:
// (alpha*g^r', beta*y^r').
func Rerandomize(grp *bigmath.Group, y *big.Int, ct *Ciphertext, r *big.Int) (*Ciphertext, error) {
	if r == nil {
		var err error
		r, err = grp.RandomExponent()
		if err != nil {
			return nil, err
		}
	}
	newAlpha := grp.Mul(ct.Alpha, grp.ExpG(r))
	newBeta := grp.Mul(ct.Beta, grp.Exp(y, r))
	return &Ciphertext{Alpha: newAlpha, Beta: newBeta}, nil
}
