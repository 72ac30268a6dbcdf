// Package ledger implements the append-only ballot ledger (C11) and its
// two tamper-evidence primitives: the running hash chain (C9) and the
// Merkle tree of inclusion proofs (C10).
package ledger

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"
)

// CiphertextWire is the canonical wire shape of an elgamal.Ciphertext,
// matching spec.md §6's {alpha,beta} decimal-string fields.
type CiphertextWire struct {
	Alpha string `json:"alpha"`
	Beta  string `json:"beta"`
}

// OrProofWire is the canonical wire shape of a zkp.OrProof, decimal
// strings throughout per spec.md §6.
type OrProofWire struct {
	A0 string `json:"a0"`
	B0 string `json:"b0"`
	A1 string `json:"a1"`
	B1 string `json:"b1"`
	C0 string `json:"c0"`
	C1 string `json:"c1"`
	S0 string `json:"s0"`
	S1 string `json:"s1"`
}

// Entry is a single ballot record on the ledger (spec.md §3's
// LedgerEntry): index, timestamp, the encrypted weighted vote, its
// well-formedness proof, the unauthenticated weight tag, and the hash
// chain link.
type Entry struct {
	Index           int            `json:"index"`
	Timestamp       string         `json:"timestamp"`
	Ciphertext      CiphertextWire `json:"ciphertext"`
	OrProof         OrProofWire    `json:"zkp"`
	WeightSignature string         `json:"weight_signature"`
	ChainHash       string         `json:"chain_hash"`
}

// canonicalJSON serializes v with sorted field names and no extraneous
// whitespace, the way spec.md §4.7/§6 requires for Merkle-leaf and
// hash-chain preimage stability. Entries are round-tripped through a
// generic map before the final encode so key order does not depend on
// struct declaration order, mirroring the source's
// `json.dumps(v, sort_keys=True)`.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

// marshalSorted encodes a map with keys in sorted order and no
// insignificant whitespace, using a stable buffer-based writer so the
// output is byte-identical across runs and implementations.
func marshalSorted(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalValue(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return marshalSorted(val)
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(val)
	}
}

// CiphertextToWire converts big.Int alpha/beta into the decimal-string
// wire shape.
func CiphertextToWire(alpha, beta *big.Int) CiphertextWire {
	return CiphertextWire{Alpha: alpha.Text(10), Beta: beta.Text(10)}
}
