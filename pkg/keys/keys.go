// Package keys implements the engine's key material store (C2): it
// generates or loads ElGamal group parameters and RSA signing parameters,
// persisting both as decimal-string integers in JSON files, matching the
// persisted state layout of spec.md §6.
package keys

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"ballotengine/pkg/bigmath"
	"ballotengine/pkg/log"
)

// GroupParams holds the ElGamal safe-prime group and tallier keypair:
// p, g, the public key y = g^x mod p, and the private key x.
type GroupParams struct {
	P *big.Int
	G *big.Int
	Y *big.Int
	X *big.Int
}

// Group returns the bigmath.Group view of these parameters.
func (gp *GroupParams) Group() *bigmath.Group {
	return bigmath.NewGroup(gp.P, gp.G)
}

// RsaParams holds the blind-signature RSA key: modulus n, public exponent
// e, private exponent d.
type RsaParams struct {
	N *big.Int
	E *big.Int
	D *big.Int
}

// groupParamsJSON is the decimal-string-integer wire format for GroupParams.
type groupParamsJSON struct {
	P string `json:"p"`
	G string `json:"g"`
	Y string `json:"y"`
	X string `json:"x"`
}

// rsaParamsJSON is the decimal-string-integer wire format for RsaParams.
type rsaParamsJSON struct {
	N string `json:"n"`
	E string `json:"e"`
	D string `json:"d"`
}

// LoadOrGenerateGroupParams loads elgamal_params_<bits>.json from dataDir,
// generating and caching a fresh safe-prime group and tallier keypair of
// the given bit size if the file does not already exist.
func LoadOrGenerateGroupParams(dataDir string, bits int) (*GroupParams, error) {
	path := filepath.Join(dataDir, fileName("elgamal_params", bits))
	if data, err := os.ReadFile(path); err == nil {
		var wire groupParamsJSON
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, xerrors.Errorf("parsing %s: %w", path, err)
		}
		return groupParamsFromWire(wire)
	} else if !os.IsNotExist(err) {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}

	log.Info("Generating %d-bit ElGamal group parameters...", bits)
	gp, err := GenerateGroupParams(bits)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(path, groupParamsToWire(gp)); err != nil {
		return nil, err
	}
	return gp, nil
}

// GenerateGroupParams builds a fresh safe prime p = 2q+1, a generator g of
// the order-q subgroup, and a tallier keypair (x, y=g^x).
func GenerateGroupParams(bits int) (*GroupParams, error) {
	q, err := rand.Prime(rand.Reader, bits-1)
	if err != nil {
		return nil, xerrors.Errorf("generating safe prime seed: %w", err)
	}
	p := new(big.Int).Add(new(big.Int).Lsh(q, 1), big.NewInt(1))
	for !p.ProbablyPrime(32) {
		q, err = rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, xerrors.Errorf("generating safe prime seed: %w", err)
		}
		p = new(big.Int).Add(new(big.Int).Lsh(q, 1), big.NewInt(1))
	}

	g, err := findGenerator(p, q)
	if err != nil {
		return nil, err
	}

	x, err := bigmath.RandomRange(big.NewInt(1), q)
	if err != nil {
		return nil, err
	}
	y := new(big.Int).Exp(g, x, p)

	return &GroupParams{P: p, G: g, Y: y, X: x}, nil
}

// findGenerator returns a generator of the order-q subgroup of Z_p*, for
// safe prime p = 2q+1: h^2 mod p generates that subgroup for any h not
// congruent to 0, 1, or -1 mod p.
func findGenerator(p, q *big.Int) (*big.Int, error) {
	two := big.NewInt(2)
	one := big.NewInt(1)
	for h := big.NewInt(2); h.Cmp(p) < 0; h.Add(h, one) {
		g := new(big.Int).Exp(h, two, p)
		if g.Cmp(one) != 0 {
			// Sanity-check order q, matching the invariant in spec.md §3.
			if new(big.Int).Exp(g, q, p).Cmp(one) == 0 {
				return g, nil
			}
		}
	}
	return nil, xerrors.New("no generator found for safe prime group")
}

// LoadOrGenerateRsaParams loads rsa_params_<bits>.json from dataDir,
// generating and caching a fresh RSA signing key of the given bit size if
// the file does not already exist.
func LoadOrGenerateRsaParams(dataDir string, bits int) (*RsaParams, error) {
	path := filepath.Join(dataDir, fileName("rsa_params", bits))
	if data, err := os.ReadFile(path); err == nil {
		var wire rsaParamsJSON
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, xerrors.Errorf("parsing %s: %w", path, err)
		}
		return rsaParamsFromWire(wire)
	} else if !os.IsNotExist(err) {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}

	log.Info("Generating %d-bit RSA signing key...", bits)
	rp, err := GenerateRsaParams(bits)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(path, rsaParamsToWire(rp)); err != nil {
		return nil, err
	}
	return rp, nil
}

// GenerateRsaParams builds a fresh RSA keypair with public exponent 65537.
func GenerateRsaParams(bits int) (*RsaParams, error) {
	e := big.NewInt(65537)
	for {
		p, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, xerrors.Errorf("generating RSA prime p: %w", err)
		}
		q, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, xerrors.Errorf("generating RSA prime q: %w", err)
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
		qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
		phi := new(big.Int).Mul(pMinus1, qMinus1)

		d := new(big.Int).ModInverse(e, phi)
		if d == nil {
			continue // e not coprime with phi(n); redraw p, q.
		}

		return &RsaParams{N: n, E: e, D: d}, nil
	}
}

func fileName(prefix string, bits int) string {
	return prefix + "_" + big.NewInt(int64(bits)).String() + ".json"
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return xerrors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func groupParamsToWire(gp *GroupParams) groupParamsJSON {
	return groupParamsJSON{P: gp.P.Text(10), G: gp.G.Text(10), Y: gp.Y.Text(10), X: gp.X.Text(10)}
}

func groupParamsFromWire(w groupParamsJSON) (*GroupParams, error) {
	p, ok := new(big.Int).SetString(w.P, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for p")
	}
	g, ok := new(big.Int).SetString(w.G, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for g")
	}
	y, ok := new(big.Int).SetString(w.Y, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for y")
	}
	x, ok := new(big.Int).SetString(w.X, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for x")
	}
	return &GroupParams{P: p, G: g, Y: y, X: x}, nil
}

func rsaParamsToWire(rp *RsaParams) rsaParamsJSON {
	return rsaParamsJSON{N: rp.N.Text(10), E: rp.E.Text(10), D: rp.D.Text(10)}
}

func rsaParamsFromWire(w rsaParamsJSON) (*RsaParams, error) {
	n, ok := new(big.Int).SetString(w.N, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for n")
	}
	e, ok := new(big.Int).SetString(w.E, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for e")
	}
	d, ok := new(big.Int).SetString(w.D, 10)
	if !ok {
		return nil, xerrors.New("invalid decimal integer for d")
	}
	return &RsaParams{N: n, E: e, D: d}, nil
}
