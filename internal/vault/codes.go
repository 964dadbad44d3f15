package vault

// LoadSavedCodes returns the activation-code history. Absence yields an
// empty history and a nil error; corruption yields a *LoadError.
func (v *Vault) LoadSavedCodes() (SavedCodes, error) {
	v.ensureCodesMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadSavedCodesLocked()
}

func (v *Vault) loadSavedCodesLocked() (SavedCodes, error) {
	var codes SavedCodes
	if err := v.loadRecord(codesFile, &codes); err != nil {
		return SavedCodes{}, err
	}
	return codes, nil
}

func (v *Vault) savedCodesOrEmpty() SavedCodes {
	codes, err := v.loadSavedCodesLocked()
	if err != nil {
		v.warnCorrupt(err)
		return SavedCodes{}
	}
	return codes
}

// SaveActivationCode appends code to the history (once) and marks it last
// used.
func (v *Vault) SaveActivationCode(code string) error {
	v.ensureCodesMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()

	saved := v.savedCodesOrEmpty()

	found := false
	for _, c := range saved.Codes {
		if c == code {
			found = true
			break
		}
	}
	if !found {
		saved.Codes = append(saved.Codes, code)
	}
	saved.LastUsed = code

	return v.saveRecord(codesFile, &saved)
}

// RemoveActivationCode deletes code from the history and cascades to the
// matching code session.
func (v *Vault) RemoveActivationCode(code string) error {
	v.ensureCodesMigrated()
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()

	saved := v.savedCodesOrEmpty()

	kept := saved.Codes[:0]
	for _, c := range saved.Codes {
		if c != code {
			kept = append(kept, c)
		}
	}
	saved.Codes = kept
	if saved.LastUsed == code {
		saved.LastUsed = ""
		if len(saved.Codes) > 0 {
			saved.LastUsed = saved.Codes[0]
		}
	}

	if err := v.saveRecord(codesFile, &saved); err != nil {
		return err
	}
	return v.removeCodeSessionLocked(code)
}

// ClearSavedCodes removes the history record and its legacy counterpart.
func (v *Vault) ClearSavedCodes() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(codesFile, legacyCodesFile)
}
