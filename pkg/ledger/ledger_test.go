package ledger

import (
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCiphertext(n int) CiphertextWire {
	return CiphertextWire{Alpha: "1", Beta: "2"}
}

func sampleProof() OrProofWire {
	return OrProofWire{A0: "1", B0: "1", A1: "1", B1: "1", C0: "1", C1: "1", S0: "1", S1: "1"}
}

func TestLedgerAppendAssignsSequentialIndices(t *testing.T) {
	led, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := led.Append(sampleCiphertext(i), sampleProof(), "weight_1", 1)
		require.NoError(t, err)
		require.Equal(t, i, res.Index)
	}

	entries := led.Scan()
	require.Len(t, entries, 3)
	require.Equal(t, 3, led.TotalWeight())
}

func TestLedgerAppendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	led, err := Open(dir)
	require.NoError(t, err)

	_, err = led.Append(sampleCiphertext(0), sampleProof(), "weight_5", 5)
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Len(t, reopened.Scan(), 1)
	require.Equal(t, 5, reopened.TotalWeight())
}

func TestLedgerVerifySucceedsOnUntamperedEntry(t *testing.T) {
	led, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = led.Append(sampleCiphertext(0), sampleProof(), "weight_1", 1)
	require.NoError(t, err)

	result, err := led.Verify(0)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.True(t, result.ChainOK)
	require.True(t, result.MerkleOK)
}

func TestLedgerVerifyDetectsTamperedVotesFile(t *testing.T) {
	dir := t.TempDir()
	led, err := Open(dir)
	require.NoError(t, err)

	_, err = led.Append(sampleCiphertext(0), sampleProof(), "weight_1", 1)
	require.NoError(t, err)
	_, err = led.Append(sampleCiphertext(1), sampleProof(), "weight_2", 2)
	require.NoError(t, err)

	votesPath := dir + "/votes.json"
	data, err := os.ReadFile(votesPath)
	require.NoError(t, err)

	var state votesFileState
	require.NoError(t, json.Unmarshal(data, &state))
	state.Votes[0].Ciphertext.Alpha = "999999"
	tampered, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(votesPath, tampered, 0o644))

	reopened, err := Open(dir)
	require.NoError(t, err)
	result, err := reopened.Verify(1)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.False(t, result.ChainOK)
}

func TestLedgerClearResetsState(t *testing.T) {
	led, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = led.Append(sampleCiphertext(0), sampleProof(), "weight_1", 1)
	require.NoError(t, err)
	require.NoError(t, led.Clear())

	require.Empty(t, led.Scan())
	require.Equal(t, 0, led.TotalWeight())
}

func TestLedgerConcurrentAppendsAreAllRecordedExactlyOnce(t *testing.T) {
	led, err := Open(t.TempDir())
	require.NoError(t, err)

	const k = 20
	var wg sync.WaitGroup
	indices := make([]int, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := led.Append(sampleCiphertext(idx), sampleProof(), "weight_1", 1)
			require.NoError(t, err)
			indices[idx] = res.Index
		}(i)
	}
	wg.Wait()

	entries := led.Scan()
	require.Len(t, entries, k)
	require.Equal(t, k, led.TotalWeight())

	seen := make(map[int]bool)
	for _, idx := range indices {
		require.False(t, seen[idx], "index %d assigned twice", idx)
		seen[idx] = true
	}
}
