// Package authfile manages the credential file consumed by the external
// factory tool. The broker borrows this file rather than owning it: the
// pre-existing content is backed up when the broker starts and restored on
// graceful shutdown.
package authfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/credbroker/internal/logging"
)

const backupSuffix = ".atm_backup"

// Record is the on-disk shape of the external credential file. TokenID and
// UpdatedAt are present only for records written by the broker itself.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenID      string `json:"token_id,omitempty"`
	UpdatedAt    int64  `json:"updated_at,omitempty"`
}

// File is a single-writer view of the external credential file. Callers must
// not interleave reads and writes from multiple goroutines; the broker
// serializes access on its side.
type File struct {
	path string
	log  logging.Logger

	now func() time.Time
}

func New(path string, log logging.Logger) *File {
	return &File{path: path, log: log, now: time.Now}
}

// Path returns the location of the managed file.
func (f *File) Path() string { return f.path }

func (f *File) backupPath() string { return f.path + backupSuffix }

// Sync overwrites the file with a freshly exchanged token pair. When tokenID
// is set the record also carries it plus an updated-at stamp, which the
// version-gated refresh later compares against the server.
func (f *File) Sync(accessToken, refreshToken, tokenID string) error {
	rec := Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if tokenID != "" {
		rec.TokenID = tokenID
		rec.UpdatedAt = f.now().Unix()
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("authfile: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("authfile: marshal: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("authfile: write: %w", err)
	}
	return nil
}

func (f *File) read() (*Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("authfile: read: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("authfile: parse: %w", err)
	}
	return &rec, nil
}

// ActiveTokenID returns the token id recorded by the last sync, or "" when
// the file is absent, unreadable or was written by the external tool itself.
func (f *File) ActiveTokenID() string {
	rec, err := f.read()
	if err != nil {
		f.log.Warn(context.Background(), "auth file unreadable", "error", err)
		return ""
	}
	if rec == nil {
		return ""
	}
	return rec.TokenID
}

// UpdatedAt returns the last sync stamp, or 0 when unknown.
func (f *File) UpdatedAt() int64 {
	rec, err := f.read()
	if err != nil {
		f.log.Warn(context.Background(), "auth file unreadable", "error", err)
		return 0
	}
	if rec == nil {
		return 0
	}
	return rec.UpdatedAt
}

// Backup preserves the external tool's own credentials before the broker
// starts writing. A leftover backup means the previous run did not shut down
// cleanly: the backup is restored into place and kept, so repeated crashes
// never overwrite the original content with broker-written records.
func (f *File) Backup() error {
	backup := f.backupPath()

	if data, err := os.ReadFile(backup); err == nil {
		f.log.Warn(context.Background(), "leftover auth backup found, restoring", "path", backup)
		if err := os.WriteFile(f.path, data, 0o600); err != nil {
			return fmt.Errorf("authfile: restore leftover backup: %w", err)
		}
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("authfile: read backup: %w", err)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("authfile: read: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(backup), 0o700); err != nil {
		return fmt.Errorf("authfile: mkdir: %w", err)
	}
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return fmt.Errorf("authfile: write backup: %w", err)
	}
	return nil
}

// Restore puts the backed-up content back and removes the backup. A missing
// backup is a no-op.
func (f *File) Restore() error {
	data, err := os.ReadFile(f.backupPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("authfile: read backup: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("authfile: restore: %w", err)
	}
	if err := os.Remove(f.backupPath()); err != nil {
		f.log.Warn(context.Background(), "auth backup removal failed", "error", err)
	}
	return nil
}

// Clear removes the file. Absence is not an error.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("authfile: remove: %w", err)
	}
	return nil
}
