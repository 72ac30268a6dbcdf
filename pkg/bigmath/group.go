// Package bigmath provides the safe-prime multiplicative group arithmetic
// shared by every cryptographic component of the engine: modular
// exponentiation and inverse, uniform range draws, and the group parameter
// type each of elgamal, aggregator, and zkp build on.
package bigmath

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"
)

// Group is a safe-prime multiplicative subgroup of Z_p*: the order-q
// subgroup generated by g, where p = 2q+1 and both p and q are prime.
// All ciphertext and proof arithmetic is mod P; all exponents, challenges,
// and responses are mod Q.
type Group struct {
	P *big.Int // safe prime
	Q *big.Int // subgroup order, (p-1)/2
	G *big.Int // generator of the order-q subgroup
}

// NewGroup builds a Group from p and g, deriving Q = (P-1)/2.
func NewGroup(p, g *big.Int) *Group {
	q := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	return &Group{P: p, Q: q, G: g}
}

// Exp computes base^exp mod p.
func (grp *Group) Exp(base, exp *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, grp.P)
}

// ExpG computes g^exp mod p.
func (grp *Group) ExpG(exp *big.Int) *big.Int {
	return grp.Exp(grp.G, exp)
}

// Inverse computes a^-1 mod p via the extended Euclidean algorithm.
func (grp *Group) Inverse(a *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(a, grp.P)
	if inv == nil {
		return nil, xerrors.Errorf("no modular inverse for %s mod p", a.String())
	}
	return inv, nil
}

// Mul computes a*b mod p.
func (grp *Group) Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), grp.P)
}

// Div computes a/b mod p, i.e. a * b^-1 mod p.
func (grp *Group) Div(a, b *big.Int) (*big.Int, error) {
	bInv, err := grp.Inverse(b)
	if err != nil {
		return nil, err
	}
	return grp.Mul(a, bInv), nil
}

// RandomExponent draws a uniform random value in [1, q-1), matching the
// range spec.md uses for ElGamal randomness, Sigma-protocol commitment
// randomness, and challenge/response blinding.
func (grp *Group) RandomExponent() (*big.Int, error) {
	return RandomRange(big.NewInt(1), new(big.Int).Sub(grp.Q, big.NewInt(1)))
}

// RandomRange draws a uniform random integer in [lo, hi) using crypto/rand.
func RandomRange(lo, hi *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(hi, lo)
	if span.Sign() <= 0 {
		return nil, xerrors.Errorf("invalid range [%s, %s)", lo.String(), hi.String())
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, xerrors.Errorf("drawing random value: %w", err)
	}
	return n.Add(n, lo), nil
}

// ModQ reduces a value mod q, normalizing negative results into [0, q).
func (grp *Group) ModQ(a *big.Int) *big.Int {
	return new(big.Int).Mod(a, grp.Q)
}
