// Package blindsign implements the RSA blind signer and client (C5) used
// to issue anonymous voting credentials.
//
// This is textbook/raw RSA blind signing: no full-domain hash is applied
// to the message before blinding. spec.md §4.3 and §9 flag this as a
// known, intentional weakness carried over from the system this engine
// was distilled from — a production signer must hash the serial with a
// full-domain hash before blinding and verify the unblinded signature
// against that hash, not against the raw serial. This package preserves
// the raw-integer behavior deliberately; see DESIGN.md's Open Questions.
package blindsign

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"

	"ballotengine/pkg/keys"
)

// ErrCoprimeExhausted is returned when no blinding factor coprime to n is
// found within the retry budget, matching spec.md §4.3/§7.
var ErrCoprimeExhausted = xerrors.New("coprime exhausted")

// defaultCoprimeRetries bounds the blinding-factor draw loop.
const defaultCoprimeRetries = 64

// blindingFactorBits is the bit size of the blinding factor r, matching
// the 128-bit draw in the source this was distilled from.
const blindingFactorBits = 128

// Blind draws a random blinding factor r (128 bits, coprime to n, r<n),
// retrying up to maxRetries times, and returns the blinded message
// m' = m * r^e mod n along with r for later unblinding.
func Blind(rp *keys.RsaParams, m *big.Int, maxRetries int) (blinded, r *big.Int, err error) {
	if maxRetries <= 0 {
		maxRetries = defaultCoprimeRetries
	}
	one := big.NewInt(1)
	for attempt := 0; attempt < maxRetries; attempt++ {
		candidate, genErr := rand.Prime(rand.Reader, blindingFactorBits)
		if genErr != nil {
			return nil, nil, xerrors.Errorf("drawing blinding factor: %w", genErr)
		}
		if candidate.Cmp(rp.N) >= 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, candidate, rp.N).Cmp(one) != 0 {
			continue
		}
		re := new(big.Int).Exp(candidate, rp.E, rp.N)
		blindedMsg := new(big.Int).Mod(new(big.Int).Mul(m, re), rp.N)
		return blindedMsg, candidate, nil
	}
	return nil, nil, ErrCoprimeExhausted
}

// Sign computes the signer's raw RSA signature over a blinded message:
// s' = m'^d mod n. The signer is oblivious to the underlying message;
// authorization of the request is an external concern (spec.md §6).
func Sign(rp *keys.RsaParams, blinded *big.Int) *big.Int {
	return new(big.Int).Exp(blinded, rp.D, rp.N)
}

// Unblind removes the blinding factor from a signed blinded message,
// yielding a valid signature over the original message:
// s = s' * r^-1 mod n.
func Unblind(rp *keys.RsaParams, signedBlinded, r *big.Int) (*big.Int, error) {
	rInv := new(big.Int).ModInverse(r, rp.N)
	if rInv == nil {
		return nil, xerrors.New("blinding factor not invertible mod n")
	}
	return new(big.Int).Mod(new(big.Int).Mul(signedBlinded, rInv), rp.N), nil
}

// Verify checks that signature is a valid RSA signature over message
// under the public key (n,e): signature^e mod n == message.
func Verify(rp *keys.RsaParams, message, signature *big.Int) bool {
	recovered := new(big.Int).Exp(signature, rp.E, rp.N)
	return recovered.Cmp(message) == 0
}
