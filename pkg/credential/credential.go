// Package credential implements the credential verifier (C6): RSA
// signature verification over an issued serial, plus atomic one-shot
// serial usage enforced over a durable, fsync-after-append used-set.
package credential

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/xerrors"

	"ballotengine/pkg/blindsign"
	"ballotengine/pkg/keys"
)

// ErrDuplicateSerial is returned when a credential's serial has already
// been consumed, matching spec.md §7's DuplicateSerial -> InvalidCredential.
var ErrDuplicateSerial = xerrors.New("duplicate serial")

// ErrBadSignature is returned when a credential's signature does not
// verify against the signer's public key, matching spec.md §7's
// BadSignature -> InvalidCredential.
var ErrBadSignature = xerrors.New("bad signature")

// Credential is a one-shot anonymous voting credential: a random serial
// and the signer's blind signature over it.
type Credential struct {
	Serial    *big.Int
	Signature *big.Int
}

// Verifier holds the durable used-serials set described in spec.md §4.4.
// Persistence policy: fsync-after-append; on load, the complete set is
// read into memory. The three-step check (already-used? signature valid?
// atomically record) is guarded by a single mutex so that two concurrent
// presentations of the same credential yield exactly one true and one
// false, per spec.md §5's lock-ordering rule ("credential verifier first,
// then ledger").
type Verifier struct {
	mu     sync.Mutex
	rsa    *keys.RsaParams
	path   string
	file   *os.File
	used   map[string]struct{}
}

// usedSerialsJSON is the decimal-string wire format for the persisted
// used-serials file (spec.md §6: used_serials.json).
type usedSerialsJSON struct {
	UsedSerials []string `json:"used_serials"`
}

// NewVerifier loads (or creates) the used-serials set at
// <dataDir>/used_serials.json.
func NewVerifier(rsa *keys.RsaParams, dataDir string) (*Verifier, error) {
	path := filepath.Join(dataDir, "used_serials.json")
	used, err := loadUsedSerials(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, xerrors.Errorf("creating data directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}

	return &Verifier{rsa: rsa, path: path, file: f, used: used}, nil
}

// Close releases the underlying file handle.
func (v *Verifier) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.file.Close()
}

// Verify checks a credential's signature and enforces one-shot usage.
// Returns ErrBadSignature or ErrDuplicateSerial on rejection; on success
// the serial is durably recorded as used before Verify returns.
func (v *Verifier) Verify(cred *Credential) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := cred.Serial.Text(10)
	if _, seen := v.used[key]; seen {
		return ErrDuplicateSerial
	}
	if !blindsign.Verify(v.rsa, cred.Serial, cred.Signature) {
		return ErrBadSignature
	}

	if err := v.persistLocked(key); err != nil {
		return err
	}
	v.used[key] = struct{}{}
	return nil
}

// persistLocked appends a newly-used serial to the durable file and
// fsyncs before returning, matching spec.md §4.4's "fsync-after-append"
// persistence policy. Caller must hold v.mu.
func (v *Verifier) persistLocked(serial string) error {
	all := make([]string, 0, len(v.used)+1)
	for s := range v.used {
		all = append(all, s)
	}
	all = append(all, serial)

	data, err := marshalUsedSerials(all)
	if err != nil {
		return err
	}

	if _, err := v.file.WriteAt(data, 0); err != nil {
		return xerrors.Errorf("writing used-serials file: %w", err)
	}
	if err := v.file.Truncate(int64(len(data))); err != nil {
		return xerrors.Errorf("truncating used-serials file: %w", err)
	}
	if err := v.file.Sync(); err != nil {
		return xerrors.Errorf("fsyncing used-serials file: %w", err)
	}
	return nil
}

func loadUsedSerials(path string) (map[string]struct{}, error) {
	used := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return used, nil
		}
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}
	if len(data) == 0 {
		return used, nil
	}

	var wire usedSerialsJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, xerrors.Errorf("parsing %s: %w", path, err)
	}
	for _, s := range wire.UsedSerials {
		used[s] = struct{}{}
	}
	return used, nil
}

func marshalUsedSerials(serials []string) ([]byte, error) {
	data, err := json.Marshal(usedSerialsJSON{UsedSerials: serials})
	if err != nil {
		return nil, xerrors.Errorf("marshaling used-serials: %w", err)
	}
	return data, nil
}
