package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/credbroker/internal/vault"
)

// Activate prompts for a code (without echo) and runs the activation flow.
func (a *App) Activate(ctx context.Context) error {
	code, err := GetActivationCode(os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return err
	}
	if code == "" {
		printlnFn("Empty code")
		return nil
	}

	result, err := a.broker.Activate(ctx, code)
	if err != nil {
		printlnFn("Activation failed:", err)
		return err
	}

	printlnFn("Activated.")
	if result.Quota != nil {
		printlnFn(fmt.Sprintf("Quota: %d", *result.Quota))
	}
	if result.ExpiresAt != nil {
		printlnFn("Expires:", time.Unix(*result.ExpiresAt, 0).Format(time.RFC3339))
	}
	if result.AutoSwitch {
		printlnFn("Mode slot: autoswitch")
	}
	if result.HasBothLicenses {
		printlnFn("Both mode slots are now populated; switch with: mode <normal|autoswitch>")
	}
	return nil
}

// Codes lists the activation-code history.
func (a *App) Codes(ctx context.Context) error {
	saved, err := a.broker.SavedCodes()
	if err != nil {
		printlnFn("Load failed:", err)
		return err
	}
	if len(saved.Codes) == 0 {
		printlnFn("No saved codes")
		return nil
	}
	for _, code := range saved.Codes {
		marker := " "
		if code == saved.LastUsed {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s %s", marker, code))
	}
	return nil
}

// Tokens lists the merged token catalog of the current mode's sessions.
func (a *App) Tokens(ctx context.Context) error {
	tokens, err := a.broker.ListAllTokens(ctx)
	if err != nil {
		printlnFn("Listing failed:", err)
		return err
	}
	if len(tokens) == 0 {
		printlnFn("No tokens available")
		return nil
	}
	for _, t := range tokens {
		valid := "invalid"
		if t.IsValid {
			valid = "valid"
		}
		printlnFn(fmt.Sprintf("%s  %s  %s", t.ID, t.Email, valid))
	}
	return nil
}

// Use exchanges a token and syncs it into the external credential file.
func (a *App) Use(ctx context.Context, tokenID string) error {
	pair, err := a.broker.ExchangeToken(ctx, tokenID)
	if err != nil {
		printlnFn("Exchange failed:", err)
		return err
	}
	printlnFn("Token synced to", a.auth.Path())
	if pair.Email != "" {
		printlnFn("Account:", pair.Email)
	}
	return nil
}

// Refresh re-syncs the active token if the server holds a newer version.
func (a *App) Refresh(ctx context.Context, force bool) error {
	result, err := a.broker.RefreshActiveToken(ctx, force)
	if err != nil {
		printlnFn("Refresh failed:", err)
		return err
	}
	if result.Skipped {
		printlnFn("Already up to date")
	} else {
		printlnFn("Refreshed")
	}
	return nil
}

// Quota queries the subscription state behind a token.
func (a *App) Quota(ctx context.Context, tokenID string) error {
	data, err := a.broker.Quota(ctx, tokenID)
	if err != nil {
		printlnFn("Quota lookup failed:", err)
		return err
	}
	for k, v := range data {
		printlnFn(fmt.Sprintf("%s: %v", k, v))
	}
	return nil
}

// Mode shows or switches the current mode.
func (a *App) Mode(ctx context.Context, mode string) error {
	if mode == "" {
		status := a.broker.LicenseStatus()
		printlnFn("Current mode:", string(status.CurrentMode))
		if status.HasNormal {
			printlnFn("  normal:", status.NormalCode)
		}
		if status.HasAutoSwitch {
			printlnFn("  autoswitch:", status.AutoSwitchCode)
		}
		return nil
	}

	if err := a.broker.SetMode(vault.Mode(mode)); err != nil {
		printlnFn("Mode switch failed:", err)
		return err
	}
	printlnFn("Mode set to", mode)
	return nil
}

// Status prints a session snapshot.
func (a *App) Status(ctx context.Context) error {
	status := a.broker.Status()
	printlnFn("Logged in:", status.LoggedIn)
	printlnFn("Valid sessions:", status.ValidSessions)
	printlnFn("Mode:", string(status.Mode))
	if status.ActiveTokenID != "" {
		printlnFn("Active token:", status.ActiveTokenID)
	}
	return nil
}

// Update checks for a newer client build.
func (a *App) Update(ctx context.Context) error {
	status := a.broker.CheckUpdate(ctx)
	if status.Err != "" {
		printlnFn("Update check failed:", status.Err)
		return nil
	}
	if !status.HasUpdate {
		printlnFn("Up to date (", a.broker.Version(), ")")
		return nil
	}
	printlnFn("Update available:", status.Version)
	if status.Changelog != "" {
		printlnFn(status.Changelog)
	}
	printlnFn("Download:", status.DownloadURL)
	return nil
}

// Unbind asks for confirmation, then releases every session's device binding
// and wipes local state.
func (a *App) Unbind(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "Unbind all sessions and wipe local state? [y/N]", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		printlnFn("Canceled")
		return nil
	}

	results := a.broker.UnbindAll(ctx)
	for _, r := range results {
		if r.Err != nil {
			printlnFn(r.Code, ": unbind failed:", r.Err)
		} else {
			printlnFn(r.Code, ": unbound")
		}
	}
	printlnFn("Local state cleared")
	return nil
}

// Logout drops the in-memory session flag.
func (a *App) Logout(ctx context.Context) error {
	a.broker.Logout()
	printlnFn("Logged out")
	return nil
}
