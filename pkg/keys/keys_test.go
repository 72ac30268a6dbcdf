package keys

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateGroupParamsSatisfiesSafePrimeInvariant(t *testing.T) {
	gp, err := GenerateGroupParams(64)
	require.NoError(t, err)

	q := new(big.Int).Rsh(new(big.Int).Sub(gp.P, big.NewInt(1)), 1)
	require.True(t, gp.P.ProbablyPrime(32))
	require.True(t, q.ProbablyPrime(32))

	one := big.NewInt(1)
	require.Equal(t, one, new(big.Int).Exp(gp.G, q, gp.P))
	require.Equal(t, gp.Y, new(big.Int).Exp(gp.G, gp.X, gp.P))
}

func TestGenerateRsaParamsRoundTripsSignature(t *testing.T) {
	rp, err := GenerateRsaParams(64)
	require.NoError(t, err)

	m := big.NewInt(42)
	sig := new(big.Int).Exp(m, rp.D, rp.N)
	recovered := new(big.Int).Exp(sig, rp.E, rp.N)
	require.Equal(t, m, recovered)
}

func TestLoadOrGenerateGroupParamsPersists(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadOrGenerateGroupParams(dir, 64)
	require.NoError(t, err)

	second, err := LoadOrGenerateGroupParams(dir, 64)
	require.NoError(t, err)

	require.Equal(t, first.P, second.P)
	require.Equal(t, first.G, second.G)
	require.Equal(t, first.Y, second.Y)
	require.Equal(t, first.X, second.X)
}

func TestLoadOrGenerateRsaParamsPersists(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadOrGenerateRsaParams(dir, 64)
	require.NoError(t, err)

	second, err := LoadOrGenerateRsaParams(dir, 64)
	require.NoError(t, err)

	require.Equal(t, first.N, second.N)
	require.Equal(t, first.D, second.D)
}

func TestLoadOrGenerateGroupParamsRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName("elgamal_params", 64))
	require.NoError(t, writeJSON(path, "not an object"))

	_, err := LoadOrGenerateGroupParams(dir, 64)
	require.Error(t, err)
}
