// Package vault is the encrypted local store of sessions, saved activation
// codes and mode-scoped licenses. Every record is one file, encrypted at rest
// with a device-bound key and rewritten in full on each mutation. Legacy
// plaintext records are migrated to the encrypted format once per process.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

// Encrypted record files and their legacy plaintext counterparts.
const (
	codesFile      = "codes.enc"
	sessionsFile   = "sessions.enc"
	normalFile     = "license_normal.enc"
	autoSwitchFile = "license_autoswitch.enc"
	modeFile       = "current_mode.dat"

	legacyCodesFile      = "codes.json"
	legacySessionsFile   = "sessions.json"
	legacyNormalFile     = "license_normal.json"
	legacyAutoSwitchFile = "license_autoswitch.json"
)

// LoadError reports a corrupted record: the file exists but could not be
// read, decrypted or parsed. Callers that prefer availability over
// durability may coerce it to the record's empty value; the vault's own
// mutators do so and log a warning.
type LoadError struct {
	Record string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("vault: load %s: %v", e.Record, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Vault stores all records under one directory. A single mutex serializes
// mutators; the broker is assumed to be the only writer of these files.
type Vault struct {
	dir    string
	atRest *cryptox.AtRest
	log    logging.Logger

	mu sync.Mutex

	// One-shot legacy migration latches, one per record kind.
	migrateCodes      sync.Once
	migrateSessions   sync.Once
	migrateNormal     sync.Once
	migrateAutoSwitch sync.Once
}

// New creates the data directory if needed and returns a Vault over it.
func New(dir string, atRest *cryptox.AtRest, log logging.Logger) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("vault: mkdir %s: %w", dir, err)
	}
	return &Vault{dir: dir, atRest: atRest, log: log}, nil
}

func (v *Vault) path(name string) string {
	return filepath.Join(v.dir, name)
}

// loadRecord reads, decrypts and unmarshals one record into out. A missing
// file leaves out untouched and returns nil; any other failure is a
// *LoadError.
func (v *Vault) loadRecord(name string, out any) error {
	data, err := os.ReadFile(v.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &LoadError{Record: name, Err: err}
	}

	plaintext, err := v.atRest.Decrypt(string(data))
	if err != nil {
		return &LoadError{Record: name, Err: err}
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return &LoadError{Record: name, Err: err}
	}
	return nil
}

// saveRecord marshals, encrypts and overwrites one record in full. There is
// no atomic rename: a crash mid-write can corrupt the record, which is
// acceptable because every record is reconstructible from a fresh activation.
func (v *Vault) saveRecord(name string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("vault: marshal %s: %w", name, err)
	}
	encrypted, err := v.atRest.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("vault: encrypt %s: %w", name, err)
	}
	if err := os.WriteFile(v.path(name), []byte(encrypted), 0o600); err != nil {
		return fmt.Errorf("vault: write %s: %w", name, err)
	}
	return nil
}

func (v *Vault) remove(names ...string) {
	for _, name := range names {
		if err := os.Remove(v.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			v.log.Warn(context.Background(), "vault: remove failed", "file", name, "error", err)
		}
	}
}

// warnCorrupt logs a coerced LoadError so "empty by policy" stays observable.
func (v *Vault) warnCorrupt(err error) {
	var le *LoadError
	if errors.As(err, &le) {
		v.log.Warn(context.Background(), "vault: corrupted record treated as empty",
			"record", le.Record, "error", le.Err)
	}
}

// ClearAll removes every record, including legacy plaintext leftovers.
func (v *Vault) ClearAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(codesFile, sessionsFile, normalFile, autoSwitchFile, modeFile,
		legacyCodesFile, legacySessionsFile, legacyNormalFile, legacyAutoSwitchFile)
}
