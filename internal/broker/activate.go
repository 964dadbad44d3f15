package broker

import (
	"context"

	"github.com/dmitrijs2005/credbroker/internal/vault"
)

// ActivationResult is what a successful activation reports to the caller.
type ActivationResult struct {
	Quota           *int64
	ExpiresAt       *int64
	AutoSwitch      bool
	HasBothLicenses bool
}

// Activate exchanges an activation code for a session and persists all the
// derived state: the code history entry, the code session and the license
// slot selected by the server's auto-switch flag.
func (b *Broker) Activate(ctx context.Context, code string) (*ActivationResult, error) {
	result, err := b.client.Activate(ctx, code, b.deviceID)
	if err != nil {
		return nil, err
	}

	if err := b.vault.SaveActivationCode(code); err != nil {
		return nil, err
	}
	if err := b.vault.UpsertCodeSession(vault.CodeSession{
		Code:         code,
		SessionToken: result.SessionToken,
		DeviceID:     b.deviceID,
		ExpiresAt:    result.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	if err := b.vault.SaveLicense(vault.LicenseInfo{
		Code:         code,
		SessionToken: result.SessionToken,
		ExpiresAt:    result.ExpiresAt,
		IsAutoSwitch: result.AutoSwitch,
	}); err != nil {
		return nil, err
	}

	b.sessionValid.Store(true)
	b.log.Info(ctx, "activation succeeded", "code", code, "autoSwitch", result.AutoSwitch)

	return &ActivationResult{
		Quota:           result.Quota,
		ExpiresAt:       result.ExpiresAt,
		AutoSwitch:      result.AutoSwitch,
		HasBothLicenses: b.vault.HasBothLicenses(),
	}, nil
}

// UnbindResult is the per-code outcome of an unbind sweep.
type UnbindResult struct {
	Code string
	Err  error
}

// UnbindAll releases every stored session's device binding (best effort,
// outcomes collected per code) and then wipes all local state including the
// external credential file.
func (b *Broker) UnbindAll(ctx context.Context) []UnbindResult {
	sessions := b.vault.ListValidSessions(b.now())

	results := make([]UnbindResult, 0, len(sessions))
	for _, s := range sessions {
		err := b.client.Unbind(ctx, s.Code, s.DeviceID)
		if err != nil {
			b.log.Warn(ctx, "unbind failed", "code", s.Code, "error", err)
		}
		results = append(results, UnbindResult{Code: s.Code, Err: err})
	}

	b.vault.ClearSessions()
	b.vault.ClearSavedCodes()
	b.vault.ClearAllLicenses()
	if err := b.auth.Clear(); err != nil {
		b.log.Warn(ctx, "auth file clear failed", "error", err)
	}
	b.sessionValid.Store(false)

	return results
}
