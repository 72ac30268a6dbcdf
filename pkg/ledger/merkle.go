package ledger

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cbergoon/merkletree"
	"golang.org/x/xerrors"
)

// leafContent adapts a ledger entry's canonical JSON bytes to
// cbergoon/merkletree's Content interface, so C10's tree is built and
// verified by that library rather than a hand-rolled reimplementation.
// The library's own tree construction already duplicates the last node
// at odd levels, matching spec.md §4.7's rule.
type leafContent struct {
	index int
	data  []byte
}

func (l leafContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256(l.data)
	return h[:], nil
}

func (l leafContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(leafContent)
	if !ok {
		return false, xerrors.New("incompatible content type")
	}
	return l.index == o.index, nil
}

// MerkleProofStep is one step of an inclusion proof: the sibling's hash
// and whether the sibling sits to the left of the node being proven, the
// [(sibling_hash, sibling_is_left_of_me)] shape of spec.md §4.7/§6.
type MerkleProofStep struct {
	SiblingHash string
	SiblingLeft bool
}

// MerkleRoot builds a Merkle tree over the canonical serializations of
// entries (in ledger order) and returns its hex-encoded root, or the
// empty string for an empty entry list (spec.md §4.7: "Root of empty tree
// is the empty string").
func MerkleRoot(canonicalEntries [][]byte) (string, error) {
	if len(canonicalEntries) == 0 {
		return "", nil
	}
	tree, err := newMerkleTree(canonicalEntries)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(tree.MerkleRoot()), nil
}

// MerkleProof returns the inclusion proof for the entry at index within
// the tree built over canonicalEntries.
func MerkleProof(canonicalEntries [][]byte, index int) ([]MerkleProofStep, error) {
	if index < 0 || index >= len(canonicalEntries) {
		return nil, xerrors.Errorf("index %d out of range for %d entries", index, len(canonicalEntries))
	}
	tree, err := newMerkleTree(canonicalEntries)
	if err != nil {
		return nil, err
	}
	content := leafContent{index: index, data: canonicalEntries[index]}
	path, order, err := tree.GetMerklePath(content)
	if err != nil {
		return nil, xerrors.Errorf("computing merkle path for index %d: %w", index, err)
	}
	steps := make([]MerkleProofStep, len(path))
	for i, sibling := range path {
		// cbergoon/merkletree's order convention: GetMerklePath appends
		// index 1 when the sibling is the node's Right neighbor and index
		// 0 when the sibling is its Left neighbor — i.e. order[i]==0 iff
		// the sibling is left of our node.
		steps[i] = MerkleProofStep{SiblingHash: hex.EncodeToString(sibling), SiblingLeft: order[i] == 0}
	}
	return steps, nil
}

// VerifyMerkleProof recomputes the root from leaf and proof and compares
// it against root (spec.md §4.7's verify_proof).
func VerifyMerkleProof(leafData []byte, proof []MerkleProofStep, root string) bool {
	current := sha256.Sum256(leafData)
	cur := current[:]
	for _, step := range proof {
		sib, err := hex.DecodeString(step.SiblingHash)
		if err != nil {
			return false
		}
		var combined []byte
		if step.SiblingLeft {
			combined = append(append([]byte{}, sib...), cur...)
		} else {
			combined = append(append([]byte{}, cur...), sib...)
		}
		h := sha256.Sum256(combined)
		cur = h[:]
	}
	return hex.EncodeToString(cur) == root
}

func newMerkleTree(canonicalEntries [][]byte) (*merkletree.MerkleTree, error) {
	contents := make([]merkletree.Content, len(canonicalEntries))
	for i, data := range canonicalEntries {
		contents[i] = leafContent{index: i, data: data}
	}
	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, xerrors.Errorf("building merkle tree: %w", err)
	}
	return tree, nil
}
