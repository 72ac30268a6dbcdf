package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/xerrors"
)

// ErrLedgerIO wraps file-system failures, matching spec.md §7's
// LedgerIOError: surfaced to the caller, never leaving partial state
// visible.
var ErrLedgerIO = xerrors.New("ledger io error")

// votesFileState is the persisted shape of votes.json (spec.md §6).
type votesFileState struct {
	Votes       []Entry `json:"votes"`
	MerkleRoot  *string `json:"merkle_root"`
	TotalWeight int     `json:"total_weight"`
}

// AppendResult is returned by Append on success.
type AppendResult struct {
	Index       int
	ChainHash   string
	MerkleProof []MerkleProofStep
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	OK       bool
	ChainOK  bool
	MerkleOK bool
	Entry    *Entry
}

// Ledger is the append-only ballot ledger (C11): a single structured JSON
// file (votes.json) plus a sidecar hash-chain file (hash_chain.json),
// guarded by both an in-process mutex and an OS-level exclusive file
// lock, matching spec.md §4.8/§5's concurrency contract. The exclusive
// lock is held across the entire read-modify-write-fsync cycle of an
// append (the "locked overwrite" choice spec.md §4.8 asks implementers
// to pick and document, rather than write-to-temp-then-rename), following
// the nesting the source (vote_db.py) uses: in-process lock outside, OS
// lock inside.
type Ledger struct {
	mu          sync.Mutex
	votesPath   string
	chainPath   string
	fileLock    *flock.Flock
	entries     []Entry
	chain       *HashChain
	totalWeight int
}

// Open loads (or initializes) the ledger rooted at dataDir.
func Open(dataDir string) (*Ledger, error) {
	votesPath := filepath.Join(dataDir, "votes.json")
	chainPath := filepath.Join(dataDir, "hash_chain.json")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Errorf("%w: creating data directory: %v", ErrLedgerIO, err)
	}

	l := &Ledger{
		votesPath: votesPath,
		chainPath: chainPath,
		fileLock:  flock.New(votesPath + ".lock"),
		chain:     NewHashChain(),
	}

	if err := l.loadLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// loadLocked reads the persisted votes.json and hash_chain.json if
// present. Caller must hold l.mu.
func (l *Ledger) loadLocked() error {
	if data, err := os.ReadFile(l.votesPath); err == nil {
		var state votesFileState
		if err := json.Unmarshal(data, &state); err != nil {
			return xerrors.Errorf("%w: parsing %s: %v", ErrLedgerIO, l.votesPath, err)
		}
		l.entries = state.Votes
		l.totalWeight = state.TotalWeight
	} else if !os.IsNotExist(err) {
		return xerrors.Errorf("%w: reading %s: %v", ErrLedgerIO, l.votesPath, err)
	}

	if data, err := os.ReadFile(l.chainPath); err == nil {
		var links []string
		if err := json.Unmarshal(data, &links); err != nil {
			return xerrors.Errorf("%w: parsing %s: %v", ErrLedgerIO, l.chainPath, err)
		}
		l.chain.SetLinks(links)
	} else if !os.IsNotExist(err) {
		return xerrors.Errorf("%w: reading %s: %v", ErrLedgerIO, l.chainPath, err)
	}
	return nil
}

// Append serializes the candidate entry, assigns it the next index,
// computes its hash-chain link, rebuilds the Merkle tree, and durably
// persists both files before returning, matching spec.md §4.8. Both the
// in-process mutex and the OS-level exclusive lock are held across the
// full operation.
func (l *Ledger) Append(ciphertext CiphertextWire, proof OrProofWire, weightSignature string, weight int) (*AppendResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fileLock.Lock(); err != nil {
		return nil, xerrors.Errorf("%w: acquiring file lock: %v", ErrLedgerIO, err)
	}
	defer l.fileLock.Unlock()

	// Re-read from disk under lock in case another process appended
	// since this process last loaded, matching the "read current
	// contents" step of spec.md §4.8.
	if err := l.loadLocked(); err != nil {
		return nil, err
	}

	index := len(l.entries)
	candidate := Entry{
		Index:           index,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		Ciphertext:      ciphertext,
		OrProof:         proof,
		WeightSignature: weightSignature,
	}

	preimage, err := canonicalJSON(candidate)
	if err != nil {
		return nil, xerrors.Errorf("%w: serializing entry: %v", ErrLedgerIO, err)
	}
	candidate.ChainHash = l.chain.Append(preimage)
	l.entries = append(l.entries, candidate)
	l.totalWeight += weight

	canonicalAll, err := l.canonicalEntries()
	if err != nil {
		return nil, err
	}
	root, err := MerkleRoot(canonicalAll)
	if err != nil {
		return nil, xerrors.Errorf("%w: building merkle tree: %v", ErrLedgerIO, err)
	}
	proofSteps, err := MerkleProof(canonicalAll, index)
	if err != nil {
		return nil, xerrors.Errorf("%w: computing merkle proof: %v", ErrLedgerIO, err)
	}

	if err := l.persistLocked(root); err != nil {
		return nil, err
	}

	return &AppendResult{Index: index, ChainHash: candidate.ChainHash, MerkleProof: proofSteps}, nil
}

// persistLocked writes votes.json and hash_chain.json and fsyncs both.
// Caller must hold l.mu and the OS file lock.
func (l *Ledger) persistLocked(root string) error {
	state := votesFileState{Votes: l.entries, MerkleRoot: &root, TotalWeight: l.totalWeight}
	if len(l.entries) == 0 {
		state.MerkleRoot = nil
	}

	if err := writeAndSync(l.votesPath, state); err != nil {
		return err
	}
	if err := writeAndSync(l.chainPath, l.chain.Links()); err != nil {
		return err
	}
	return nil
}

func writeAndSync(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return xerrors.Errorf("%w: marshaling %s: %v", ErrLedgerIO, path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.Errorf("%w: opening %s: %v", ErrLedgerIO, path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return xerrors.Errorf("%w: writing %s: %v", ErrLedgerIO, path, err)
	}
	if err := f.Sync(); err != nil {
		return xerrors.Errorf("%w: fsyncing %s: %v", ErrLedgerIO, path, err)
	}
	return nil
}

// canonicalEntries returns the canonical serialization of every entry, in
// ledger order, for Merkle-tree construction. Merkle leaves cover the
// whole entry including its chain_hash field (spec.md §3: leaves are
// SHA256(canonical_json(entry_i))).
func (l *Ledger) canonicalEntries() ([][]byte, error) {
	out := make([][]byte, len(l.entries))
	for i, e := range l.entries {
		data, err := canonicalJSON(e)
		if err != nil {
			return nil, xerrors.Errorf("%w: serializing entry %d: %v", ErrLedgerIO, i, err)
		}
		out[i] = data
	}
	return out, nil
}

// chainPreimages returns the canonical serialization of every entry with
// its chain_hash field cleared, in ledger order, matching the preimage
// Append feeds to the hash chain (spec.md §3: "serialize(entry_i without
// chain_hash)") — distinct from canonicalEntries, whose Merkle leaves keep
// chain_hash.
func (l *Ledger) chainPreimages() ([][]byte, error) {
	out := make([][]byte, len(l.entries))
	for i, e := range l.entries {
		e.ChainHash = ""
		data, err := canonicalJSON(e)
		if err != nil {
			return nil, xerrors.Errorf("%w: serializing entry %d: %v", ErrLedgerIO, i, err)
		}
		out[i] = data
	}
	return out, nil
}

// Scan returns a snapshot of the entries this Ledger holds in memory. It
// takes only the in-process mutex, not the OS-level file lock, per
// spec.md §4.8's "locked overwrite" choice: writers hold both locks across
// their full read-modify-write cycle, so Scan never observes a
// half-finished append.
func (l *Ledger) Scan() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalWeight returns the sum of weights of all appended ballots.
func (l *Ledger) TotalWeight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalWeight
}

// Verify rebuilds the Merkle tree from the persisted entries and checks
// both the hash chain and the inclusion proof for the entry at index,
// the rebuild-then-check discipline of the source's verify controller
// (rather than trusting a cached proof).
func (l *Ledger) Verify(index int) (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.entries) {
		return &VerifyResult{OK: false}, xerrors.Errorf("index %d out of range", index)
	}

	canonicalAll, err := l.canonicalEntries()
	if err != nil {
		return nil, err
	}

	chainPreimages, err := l.chainPreimages()
	if err != nil {
		return nil, err
	}
	chainOK := l.chain.Verify(chainPreimages) == nil

	root, err := MerkleRoot(canonicalAll)
	if err != nil {
		return nil, xerrors.Errorf("%w: rebuilding merkle tree: %v", ErrLedgerIO, err)
	}
	proof, err := MerkleProof(canonicalAll, index)
	if err != nil {
		return nil, xerrors.Errorf("%w: rebuilding merkle proof: %v", ErrLedgerIO, err)
	}
	merkleOK := VerifyMerkleProof(canonicalAll[index], proof, root)

	entry := l.entries[index]
	return &VerifyResult{
		OK:       chainOK && merkleOK,
		ChainOK:  chainOK,
		MerkleOK: merkleOK,
		Entry:    &entry,
	}, nil
}

// Clear resets the ledger to empty. Test-only, per spec.md §4.8.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fileLock.Lock(); err != nil {
		return xerrors.Errorf("%w: acquiring file lock: %v", ErrLedgerIO, err)
	}
	defer l.fileLock.Unlock()

	l.entries = nil
	l.totalWeight = 0
	l.chain = NewHashChain()
	return l.persistLocked("")
}
