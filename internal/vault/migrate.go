package vault

import (
	"context"
	"encoding/json"
	"errors"
	"os"
)

// migrateLegacy rewrites one legacy plaintext record through the encrypted
// path and deletes the original. Unreadable or malformed legacy files are
// dropped rather than carried forward.
//
// Callers wrap this in a per-kind sync.Once so the check runs at most once
// per process, and must invoke it before the first read of the record.
func (v *Vault) migrateLegacy(legacyName, name string, out any) {
	data, err := os.ReadFile(v.path(legacyName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			v.log.Warn(context.Background(), "vault: legacy record unreadable, skipping migration",
				"file", legacyName, "error", err)
		}
		return
	}

	if err := json.Unmarshal(data, out); err != nil {
		v.log.Warn(context.Background(), "vault: legacy record malformed, dropping",
			"file", legacyName, "error", err)
		v.remove(legacyName)
		return
	}

	if err := v.saveRecord(name, out); err != nil {
		v.log.Error(context.Background(), "vault: legacy migration failed",
			"file", legacyName, "error", err)
		return
	}
	v.remove(legacyName)
	v.log.Info(context.Background(), "vault: migrated legacy record", "file", legacyName)
}

func (v *Vault) ensureCodesMigrated() {
	v.migrateCodes.Do(func() {
		var codes SavedCodes
		v.migrateLegacy(legacyCodesFile, codesFile, &codes)
	})
}

func (v *Vault) ensureSessionsMigrated() {
	v.migrateSessions.Do(func() {
		var multi MultiSession
		v.migrateLegacy(legacySessionsFile, sessionsFile, &multi)
	})
}

func (v *Vault) ensureLicenseMigrated(mode Mode) {
	switch mode {
	case ModeAutoSwitch:
		v.migrateAutoSwitch.Do(func() {
			var info LicenseInfo
			v.migrateLegacy(legacyAutoSwitchFile, autoSwitchFile, &info)
		})
	default:
		v.migrateNormal.Do(func() {
			var info LicenseInfo
			v.migrateLegacy(legacyNormalFile, normalFile, &info)
		})
	}
}
