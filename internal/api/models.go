package api

// activateRequest is the signed body of activation and unbind calls.
type activateRequest struct {
	Code      string `json:"code"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

type activateResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"session_token"`
	ExpiresAt    *int64 `json:"expires_at"`
	Quota        *int64 `json:"quota"`
	AutoSwitch   bool   `json:"auto_switch"`
	Error        string `json:"error"`
}

// ActivateResult is a successful activation.
type ActivateResult struct {
	SessionToken string
	ExpiresAt    *int64
	Quota        *int64
	AutoSwitch   bool
}

// TokenInfo describes one token offered by the authorization service. The
// list arrives as an encrypted payload; this is its decrypted element shape.
type TokenInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	IsValid    bool   `json:"is_valid"`
	QuotaUsed  *int64 `json:"quota_used,omitempty"`
	QuotaTotal *int64 `json:"quota_total,omitempty"`
}

// encryptedListResponse carries an AES-GCM payload in the data/iv/tag split.
type encryptedListResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
	IV      string `json:"iv"`
	Tag     string `json:"tag"`
	Error   string `json:"error"`
}

type tokenActivateRequest struct {
	TokenID string `json:"token_id"`
}

type tokenActivateResponse struct {
	Success      bool   `json:"success"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	AccessIV     string `json:"access_iv"`
	AccessTag    string `json:"access_tag"`
	RefreshToken string `json:"refresh_token"`
	RefreshIV    string `json:"refresh_iv"`
	RefreshTag   string `json:"refresh_tag"`
	Error        string `json:"error"`
}

// TokenPair is a decrypted access/refresh credential pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Email        string
}

// HeartbeatResult reports whether the probed session is still valid and, when
// it is, the renewed expiry.
type HeartbeatResult struct {
	Valid     bool   `json:"valid"`
	ExpiresAt *int64 `json:"expires_at"`
}

type versionCheckResponse struct {
	Success   bool   `json:"success"`
	UpdatedAt int64  `json:"updated_at"`
	Error     string `json:"error"`
}

type unbindResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// UpdateInfo is the client-update descriptor served by the authorization
// service. Field names follow the server's camelCase convention.
type UpdateInfo struct {
	HasUpdate   bool   `json:"hasUpdate"`
	Version     string `json:"version"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Changelog   string `json:"changelog"`
	ForceUpdate bool   `json:"forceUpdate"`
	DownloadURL string `json:"downloadUrl"`
}
