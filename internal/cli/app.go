// Package cli is the interactive shell over the broker: a small REPL that
// drives activation, token exchange and maintenance commands, keeps the
// heartbeat running in the background and handles the external credential
// file's backup/restore lifecycle.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/dmitrijs2005/credbroker/internal/authfile"
	"github.com/dmitrijs2005/credbroker/internal/broker"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

type App struct {
	broker *broker.Broker
	auth   *authfile.File
	log    logging.Logger
	reader *bufio.Reader
}

func NewApp(b *broker.Broker, auth *authfile.File, log logging.Logger) *App {
	return &App{
		broker: b,
		auth:   auth,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run backs up the external credential file, starts the background heartbeat
// and enters the REPL. The backup is restored when the loop exits.
func (a *App) Run(ctx context.Context) {
	if err := a.auth.Backup(); err != nil {
		a.log.Warn(ctx, "auth file backup failed", "error", err)
	}
	defer func() {
		if err := a.auth.Restore(); err != nil {
			a.log.Warn(ctx, "auth file restore failed", "error", err)
		}
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go a.broker.RunHeartbeat(hbCtx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.statusLine, scanner)
}

func (a *App) statusLine() string {
	status := a.broker.Status()
	if !status.LoggedIn {
		return "offline"
	}
	return string(status.Mode)
}
