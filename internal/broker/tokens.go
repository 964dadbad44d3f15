package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/credbroker/internal/api"
	"github.com/dmitrijs2005/credbroker/internal/common"
	"github.com/dmitrijs2005/credbroker/internal/vault"
)

// ExchangeToken resolves tokenID into a decrypted credential pair, trying
// each valid session in order. A session the server reports expired is
// evicted and the next one tried; the first success syncs the pair into the
// external credential file and wins.
func (b *Broker) ExchangeToken(ctx context.Context, tokenID string) (*api.TokenPair, error) {
	sessions := b.vault.ListValidSessions(b.now())
	if len(sessions) == 0 {
		return nil, common.ErrNoValidSessions
	}

	var lastErr error
	for _, s := range sessions {
		pair, err := b.client.ActivateToken(ctx, s.SessionToken, tokenID, s.DeviceID)
		if err != nil {
			lastErr = err
			if errors.Is(err, common.ErrSessionExpired) {
				b.evictExpired(ctx, s.Code)
			}
			continue
		}

		if err := b.auth.Sync(pair.AccessToken, pair.RefreshToken, tokenID); err != nil {
			return nil, err
		}
		return pair, nil
	}

	return nil, fmt.Errorf("token exchange failed: %w", lastErr)
}

// Quota resolves tokenID through any valid session and queries the external
// consumer's subscription endpoint with the decrypted access token. The
// subscription response is passed through untouched.
func (b *Broker) Quota(ctx context.Context, tokenID string) (map[string]any, error) {
	sessions := b.vault.ListValidSessions(b.now())
	if len(sessions) == 0 {
		return nil, common.ErrNoValidSessions
	}

	var lastErr error
	for _, s := range sessions {
		pair, err := b.client.ActivateToken(ctx, s.SessionToken, tokenID, s.DeviceID)
		if err != nil {
			lastErr = err
			if errors.Is(err, common.ErrSessionExpired) {
				b.evictExpired(ctx, s.Code)
			}
			continue
		}
		return b.client.Subscription(ctx, pair.AccessToken)
	}

	return nil, fmt.Errorf("quota lookup failed: %w", lastErr)
}

type listOutcome struct {
	code   string
	tokens []api.TokenInfo
	err    error
}

// ListAllTokens fetches the token catalogs of all candidate sessions
// concurrently and merges them, de-duplicating by token id in session order.
// Candidates are scoped to the license of the current mode when one is
// recorded; otherwise every valid session participates. Per-session errors
// surface only when the merged set ends up empty.
func (b *Broker) ListAllTokens(ctx context.Context) ([]api.TokenInfo, error) {
	all := b.vault.ListValidSessions(b.now())
	if len(all) == 0 {
		return nil, common.ErrNoValidSessions
	}

	sessions := b.scopeToMode(all)
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w for mode %s", common.ErrNoValidSessions, b.vault.CurrentMode())
	}

	outcomes := make([]listOutcome, len(sessions))
	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s vault.CodeSession) {
			defer wg.Done()
			tokens, err := b.client.TokenList(ctx, s.SessionToken, s.DeviceID)
			outcomes[i] = listOutcome{code: s.Code, tokens: tokens, err: err}
		}(i, s)
	}
	wg.Wait()

	var merged []api.TokenInfo
	seen := make(map[string]struct{})
	var failures []string

	for _, out := range outcomes {
		if out.err != nil {
			if errors.Is(out.err, common.ErrSessionExpired) {
				b.evictExpired(ctx, out.code)
			}
			failures = append(failures, fmt.Sprintf("%s: %v", out.code, out.err))
			continue
		}
		for _, token := range out.tokens {
			if _, ok := seen[token.ID]; ok {
				continue
			}
			seen[token.ID] = struct{}{}
			merged = append(merged, token)
		}
	}

	if len(merged) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("token listing failed: %s", strings.Join(failures, ", "))
	}
	return merged, nil
}

// scopeToMode narrows sessions to those of the current mode's license code.
// Without a recorded license for the mode, all sessions pass through.
func (b *Broker) scopeToMode(sessions []vault.CodeSession) []vault.CodeSession {
	license, err := b.vault.LoadLicense(b.vault.CurrentMode())
	if err != nil || license == nil {
		return sessions
	}

	var scoped []vault.CodeSession
	for _, s := range sessions {
		if s.Code == license.Code {
			scoped = append(scoped, s)
		}
	}
	return scoped
}

// RefreshResult distinguishes a refresh that ran from one the version gate
// skipped.
type RefreshResult struct {
	Refreshed bool
	Skipped   bool
}

// RefreshActiveToken re-syncs the external credential file when the server
// holds a newer version of the active token. Without force, the exchange is
// skipped when the server's stamp is not strictly newer than the local one
// (an unset local stamp always refreshes).
func (b *Broker) RefreshActiveToken(ctx context.Context, force bool) (RefreshResult, error) {
	tokenID := b.auth.ActiveTokenID()
	if tokenID == "" {
		return RefreshResult{}, common.ErrNoActiveToken
	}
	localUpdatedAt := b.auth.UpdatedAt()

	sessions := b.vault.ListValidSessions(b.now())
	if len(sessions) == 0 {
		return RefreshResult{}, common.ErrNoValidSessions
	}

	var serverUpdatedAt int64
	var session *vault.CodeSession
	for i, s := range sessions {
		updatedAt, err := b.client.CheckTokenVersion(ctx, s.SessionToken, tokenID, s.DeviceID)
		if err != nil {
			if errors.Is(err, common.ErrSessionExpired) {
				b.evictExpired(ctx, s.Code)
			}
			continue
		}
		serverUpdatedAt = updatedAt
		session = &sessions[i]
		break
	}
	if session == nil {
		return RefreshResult{}, common.ErrNoValidSessions
	}

	if !force && serverUpdatedAt <= localUpdatedAt && localUpdatedAt > 0 {
		b.log.Debug(ctx, "token up to date, refresh skipped",
			"local", localUpdatedAt, "server", serverUpdatedAt)
		return RefreshResult{Skipped: true}, nil
	}

	pair, err := b.client.ActivateToken(ctx, session.SessionToken, tokenID, session.DeviceID)
	if err != nil {
		return RefreshResult{}, err
	}
	if err := b.auth.Sync(pair.AccessToken, pair.RefreshToken, tokenID); err != nil {
		return RefreshResult{}, err
	}

	b.log.Info(ctx, "active token refreshed", "tokenId", tokenID)
	return RefreshResult{Refreshed: true}, nil
}
