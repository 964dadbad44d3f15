// Package broker orchestrates the vault, the protocol client and the
// external credential file into the operations the application exposes:
// activation, token exchange with multi-session fallback, aggregate listing,
// version-gated refresh, heartbeat and unbinding.
package broker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/credbroker/internal/api"
	"github.com/dmitrijs2005/credbroker/internal/authfile"
	"github.com/dmitrijs2005/credbroker/internal/config"
	"github.com/dmitrijs2005/credbroker/internal/logging"
	"github.com/dmitrijs2005/credbroker/internal/vault"
)

// Broker owns all mutable session state. The session-valid flag is in-memory
// only and resets on restart; persistent truth lives in the vault.
type Broker struct {
	vault  *vault.Vault
	client api.Client
	auth   *authfile.File
	log    logging.Logger

	deviceID   string
	version    string
	apiBaseURL string

	heartbeatMin time.Duration
	heartbeatMax time.Duration

	sessionValid atomic.Bool

	now func() time.Time
}

// New wires a Broker from its collaborators. version is the running build's
// version, used to gate client updates.
func New(v *vault.Vault, client api.Client, auth *authfile.File, deviceID, version string,
	cfg *config.Config, log logging.Logger) *Broker {
	return &Broker{
		vault:        v,
		client:       client,
		auth:         auth,
		log:          log,
		deviceID:     deviceID,
		version:      version,
		apiBaseURL:   cfg.APIBaseURL,
		heartbeatMin: cfg.HeartbeatMin,
		heartbeatMax: cfg.HeartbeatMax,
		now:          time.Now,
	}
}

// DeviceID returns the device fingerprint all requests are bound to.
func (b *Broker) DeviceID() string { return b.deviceID }

// Version returns the running build's version string.
func (b *Broker) Version() string { return b.version }

// StatusInfo is a snapshot for UI-level display.
type StatusInfo struct {
	LoggedIn      bool
	ValidSessions int
	Mode          vault.Mode
	ActiveTokenID string
}

// Status reports the in-memory validity flag alongside persistent state.
func (b *Broker) Status() StatusInfo {
	return StatusInfo{
		LoggedIn:      b.sessionValid.Load(),
		ValidSessions: len(b.vault.ListValidSessions(b.now())),
		Mode:          b.vault.CurrentMode(),
		ActiveTokenID: b.auth.ActiveTokenID(),
	}
}

// Logout drops the in-memory validity flag. Persistent sessions stay; a
// heartbeat or activation can restore the flag.
func (b *Broker) Logout() {
	b.sessionValid.Store(false)
}

// ClearAll wipes every vault record and drops the validity flag. The
// external credential file is left alone; it belongs to its consumer.
func (b *Broker) ClearAll() {
	b.vault.ClearAll()
	b.sessionValid.Store(false)
}

// SavedCodes returns the activation-code history.
func (b *Broker) SavedCodes() (vault.SavedCodes, error) {
	return b.vault.LoadSavedCodes()
}

// RemoveSavedCode deletes one code from the history and cascades to its
// session.
func (b *Broker) RemoveSavedCode(code string) error {
	return b.vault.RemoveActivationCode(code)
}

// LicenseStatus describes which mode slots are populated.
type LicenseStatus struct {
	HasNormal      bool
	HasAutoSwitch  bool
	HasBoth        bool
	CurrentMode    vault.Mode
	NormalCode     string
	AutoSwitchCode string
}

// LicenseStatus inspects both license slots and the current mode marker.
func (b *Broker) LicenseStatus() LicenseStatus {
	status := LicenseStatus{CurrentMode: b.vault.CurrentMode()}

	if normal, err := b.vault.LoadLicense(vault.ModeNormal); err == nil && normal != nil {
		status.HasNormal = true
		status.NormalCode = normal.Code
	}
	if auto, err := b.vault.LoadLicense(vault.ModeAutoSwitch); err == nil && auto != nil {
		status.HasAutoSwitch = true
		status.AutoSwitchCode = auto.Code
	}
	status.HasBoth = status.HasNormal && status.HasAutoSwitch
	return status
}

// SetMode persists the current mode marker.
func (b *Broker) SetMode(mode vault.Mode) error {
	return b.vault.SetMode(mode)
}

// Mode returns the persisted mode marker.
func (b *Broker) Mode() vault.Mode {
	return b.vault.CurrentMode()
}

// evictExpired removes a session the server no longer accepts.
func (b *Broker) evictExpired(ctx context.Context, code string) {
	b.log.Info(ctx, "evicting expired session", "code", code)
	if err := b.vault.RemoveCodeSession(code); err != nil {
		b.log.Warn(ctx, "session eviction failed", "code", code, "error", err)
	}
}
