package broker

import (
	"context"
	"math/rand"
	"time"
)

// Heartbeat probes the first valid stored session. An invalid verdict evicts
// that session and drops the validity flag; a valid verdict with a renewed
// expiry re-stamps every stored session, since the server enforces one
// global expiry per cycle. Transport failures leave local state untouched
// and report invalid.
func (b *Broker) Heartbeat(ctx context.Context) bool {
	sessions := b.vault.ListValidSessions(b.now())
	if len(sessions) == 0 {
		b.sessionValid.Store(false)
		return false
	}

	first := sessions[0]
	result, err := b.client.Heartbeat(ctx, first.SessionToken, first.DeviceID)
	if err != nil {
		b.log.Warn(ctx, "heartbeat transport failure", "error", err)
		return false
	}

	if !result.Valid {
		b.evictExpired(ctx, first.Code)
		b.sessionValid.Store(false)
		return false
	}

	if result.ExpiresAt != nil {
		if err := b.vault.UpdateAllExpiries(*result.ExpiresAt); err != nil {
			b.log.Warn(ctx, "expiry re-stamp failed", "error", err)
		}
	}
	b.sessionValid.Store(true)
	return true
}

// RunHeartbeat probes in a loop until ctx is canceled, sleeping a random
// duration within the configured bounds between probes so a fleet of clients
// does not synchronize against the server.
func (b *Broker) RunHeartbeat(ctx context.Context) {
	timer := time.NewTimer(b.heartbeatInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			b.Heartbeat(ctx)
			timer.Reset(b.heartbeatInterval())
		}
	}
}

func (b *Broker) heartbeatInterval() time.Duration {
	spread := b.heartbeatMax - b.heartbeatMin
	if spread <= 0 {
		return b.heartbeatMin
	}
	return b.heartbeatMin + time.Duration(rand.Int63n(int64(spread)))
}
