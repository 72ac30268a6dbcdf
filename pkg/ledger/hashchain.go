package ledger

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/xerrors"
)

// hashChainGenesis is the chain's h_{-1}: 64 hex zero characters, matching
// spec.md §4.7 and the hash_chain.py source this is grounded on.
func hashChainGenesis() string {
	return hex.EncodeToString(make([]byte, 32))
}

// HashChain is a running SHA-256 chain over serialized ballots:
// h_i = SHA256(h_{i-1} || canon(entry_i)).
type HashChain struct {
	links []string
}

// NewHashChain returns an empty hash chain.
func NewHashChain() *HashChain {
	return &HashChain{}
}

// Append computes the next chain link for the canonical serialization of
// entry (with ChainHash left unset by the caller) and records it.
func (c *HashChain) Append(entryCanonical []byte) string {
	prev := hashChainGenesis()
	if len(c.links) > 0 {
		prev = c.links[len(c.links)-1]
	}
	h := sha256.Sum256(append([]byte(prev), entryCanonical...))
	link := hex.EncodeToString(h[:])
	c.links = append(c.links, link)
	return link
}

// Links returns the chain's recorded hash values in order.
func (c *HashChain) Links() []string {
	return c.links
}

// SetLinks replaces the chain's state, used when loading a persisted
// hash_chain.json file.
func (c *HashChain) SetLinks(links []string) {
	c.links = links
}

// Verify recomputes the chain over canonicalEntries (each entry's
// canonical serialization without its chain_hash field) and compares
// against the recorded links, in order.
func (c *HashChain) Verify(canonicalEntries [][]byte) error {
	if len(canonicalEntries) != len(c.links) {
		return xerrors.Errorf("hash chain length mismatch: have %d entries, %d links", len(canonicalEntries), len(c.links))
	}
	prev := hashChainGenesis()
	for i, data := range canonicalEntries {
		h := sha256.Sum256(append([]byte(prev), data...))
		expected := hex.EncodeToString(h[:])
		if expected != c.links[i] {
			return xerrors.Errorf("hash chain broken at index %d", i)
		}
		prev = expected
	}
	return nil
}
