package vault

import "time"

// LoadMultiSession returns the stored session collection. Absence yields an
// empty collection and a nil error; corruption yields an empty collection and
// a *LoadError so callers can tell the two apart.
func (v *Vault) LoadMultiSession() (MultiSession, error) {
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadMultiSessionLocked()
}

func (v *Vault) loadMultiSessionLocked() (MultiSession, error) {
	var multi MultiSession
	if err := v.loadRecord(sessionsFile, &multi); err != nil {
		return MultiSession{}, err
	}
	return multi, nil
}

// multiSessionOrEmpty coerces corruption to an empty collection, logging it.
func (v *Vault) multiSessionOrEmpty() MultiSession {
	multi, err := v.loadMultiSessionLocked()
	if err != nil {
		v.warnCorrupt(err)
		return MultiSession{}
	}
	return multi
}

// UpsertCodeSession stores a session under its code, replacing any previous
// session for the same code so the collection never holds duplicates.
func (v *Vault) UpsertCodeSession(session CodeSession) error {
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()

	multi := v.multiSessionOrEmpty()

	kept := multi.Sessions[:0]
	for _, s := range multi.Sessions {
		if s.Code != session.Code {
			kept = append(kept, s)
		}
	}
	multi.Sessions = append(kept, session)

	return v.saveRecord(sessionsFile, &multi)
}

// RemoveCodeSession evicts the session stored under code, if any.
func (v *Vault) RemoveCodeSession(code string) error {
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.removeCodeSessionLocked(code)
}

func (v *Vault) removeCodeSessionLocked(code string) error {
	multi := v.multiSessionOrEmpty()

	kept := multi.Sessions[:0]
	for _, s := range multi.Sessions {
		if s.Code != code {
			kept = append(kept, s)
		}
	}
	multi.Sessions = kept

	return v.saveRecord(sessionsFile, &multi)
}

// UpdateAllExpiries re-stamps the expiry of every stored session. The server
// enforces one global expiry policy per heartbeat cycle, so a renewed expiry
// applies across the board, not just to the probed session.
func (v *Vault) UpdateAllExpiries(newExpiry int64) error {
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()

	multi := v.multiSessionOrEmpty()
	for i := range multi.Sessions {
		expiry := newExpiry
		multi.Sessions[i].ExpiresAt = &expiry
	}
	return v.saveRecord(sessionsFile, &multi)
}

// ListValidSessions returns the sessions valid at now, in insertion order.
// Corruption is coerced to an empty list (and logged).
func (v *Vault) ListValidSessions(now time.Time) []CodeSession {
	v.ensureSessionsMigrated()
	v.mu.Lock()
	defer v.mu.Unlock()

	multi := v.multiSessionOrEmpty()

	var valid []CodeSession
	for _, s := range multi.Sessions {
		if s.ValidAt(now) {
			valid = append(valid, s)
		}
	}
	return valid
}

// ClearSessions removes the session record and its legacy counterpart.
func (v *Vault) ClearSessions() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(sessionsFile, legacySessionsFile)
}
