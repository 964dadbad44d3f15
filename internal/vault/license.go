package vault

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/dmitrijs2005/credbroker/internal/common"
)

func licenseFileFor(mode Mode) string {
	if mode == ModeAutoSwitch {
		return autoSwitchFile
	}
	return normalFile
}

// LoadLicense returns the license stored in the given mode slot, or nil if
// the slot is empty. Corruption yields nil and a *LoadError.
func (v *Vault) LoadLicense(mode Mode) (*LicenseInfo, error) {
	v.ensureLicenseMigrated(mode)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadLicenseLocked(mode)
}

func (v *Vault) loadLicenseLocked(mode Mode) (*LicenseInfo, error) {
	name := licenseFileFor(mode)
	if _, err := os.Stat(v.path(name)); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	var info LicenseInfo
	if err := v.loadRecord(name, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// licenseOrNil coerces corruption to an empty slot, logging it.
func (v *Vault) licenseOrNil(mode Mode) *LicenseInfo {
	info, err := v.loadLicenseLocked(mode)
	if err != nil {
		v.warnCorrupt(err)
		return nil
	}
	return info
}

// SaveLicense writes info into the slot selected by its IsAutoSwitch flag.
// The two slots are independent; both may be populated over time.
func (v *Vault) SaveLicense(info LicenseInfo) error {
	mode := ModeNormal
	if info.IsAutoSwitch {
		mode = ModeAutoSwitch
	}
	v.ensureLicenseMigrated(mode)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.saveRecord(licenseFileFor(mode), &info)
}

// HasBothLicenses reports whether both mode slots are populated.
func (v *Vault) HasBothLicenses() bool {
	v.ensureLicenseMigrated(ModeNormal)
	v.ensureLicenseMigrated(ModeAutoSwitch)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.licenseOrNil(ModeNormal) != nil && v.licenseOrNil(ModeAutoSwitch) != nil
}

// ClearLicense empties one mode slot.
func (v *Vault) ClearLicense(mode Mode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(licenseFileFor(mode))
}

// ClearAllLicenses empties both slots, the mode marker and any legacy
// plaintext leftovers.
func (v *Vault) ClearAllLicenses() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(normalFile, autoSwitchFile, modeFile, legacyNormalFile, legacyAutoSwitchFile)
}

// SetMode persists the current mode marker. Only the two declared modes are
// accepted.
func (v *Vault) SetMode(mode Mode) error {
	if !mode.Valid() {
		return common.ErrInvalidMode
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.WriteFile(v.path(modeFile), []byte(mode), 0o600); err != nil {
		return err
	}
	return nil
}

// CurrentMode returns the persisted mode, defaulting to normal when the
// marker is absent or holds anything but the two accepted values.
func (v *Vault) CurrentMode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path(modeFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			v.log.Warn(context.Background(), "vault: mode marker unreadable", "error", err)
		}
		return ModeNormal
	}
	mode := Mode(strings.TrimSpace(string(data)))
	if !mode.Valid() {
		return ModeNormal
	}
	return mode
}
