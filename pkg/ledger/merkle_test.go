package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerkleRootEmptyIsEmptyString(t *testing.T) {
	root, err := MerkleRoot(nil)
	require.NoError(t, err)
	require.Equal(t, "", root)
}

func TestMerkleProofVerifiesForEveryLeaf(t *testing.T) {
	entries := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	root, err := MerkleRoot(entries)
	require.NoError(t, err)
	require.NotEmpty(t, root)

	for i, e := range entries {
		proof, err := MerkleProof(entries, i)
		require.NoError(t, err)
		require.True(t, VerifyMerkleProof(e, proof, root))
	}
}

func TestMerkleProofRejectsTamperedLeaf(t *testing.T) {
	entries := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	root, err := MerkleRoot(entries)
	require.NoError(t, err)

	proof, err := MerkleProof(entries, 1)
	require.NoError(t, err)
	require.False(t, VerifyMerkleProof([]byte("tampered"), proof, root))
}

func TestMerkleProofOutOfRangeIndexErrors(t *testing.T) {
	entries := [][]byte{[]byte("a")}
	_, err := MerkleProof(entries, 5)
	require.Error(t, err)
}

func TestMerkleRootChangesWithEntryContent(t *testing.T) {
	root1, err := MerkleRoot([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	root2, err := MerkleRoot([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)
}
