package vault

import "time"

// Mode selects which stored license is "current". Only the two declared
// values are accepted; anything else is rejected.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeAutoSwitch Mode = "autoswitch"
)

// Valid reports whether m is one of the two accepted modes.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeAutoSwitch
}

// CodeSession is a server-issued session bound to one activation code and
// device. ExpiresAt is a unix timestamp; nil means no expiry.
type CodeSession struct {
	Code         string `json:"code"`
	SessionToken string `json:"session_token"`
	DeviceID     string `json:"device_id"`
	ExpiresAt    *int64 `json:"expires_at"`
}

// ValidAt reports whether the session is valid at the given instant:
// no expiry, or an expiry strictly in the future.
func (s CodeSession) ValidAt(now time.Time) bool {
	return s.ExpiresAt == nil || *s.ExpiresAt > now.Unix()
}

// MultiSession is the ordered collection of code sessions, persisted as one
// encrypted record and rewritten wholesale on every mutation.
type MultiSession struct {
	Sessions []CodeSession `json:"sessions"`
}

// SavedCodes is the history of activation codes entered by the user.
type SavedCodes struct {
	Codes    []string `json:"codes"`
	LastUsed string   `json:"last_used,omitempty"`
}

// LicenseInfo binds an activation code to one of the two mode slots.
type LicenseInfo struct {
	Code         string `json:"code"`
	SessionToken string `json:"session_token"`
	ExpiresAt    *int64 `json:"expires_at"`
	IsAutoSwitch bool   `json:"is_auto_switch"`
}
