package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credbroker/internal/api"
	"github.com/dmitrijs2005/credbroker/internal/authfile"
	"github.com/dmitrijs2005/credbroker/internal/broker"
	"github.com/dmitrijs2005/credbroker/internal/buildinfo"
	"github.com/dmitrijs2005/credbroker/internal/cli"
	"github.com/dmitrijs2005/credbroker/internal/config"
	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/deviceid"
	"github.com/dmitrijs2005/credbroker/internal/logging"
	"github.com/dmitrijs2005/credbroker/internal/vault"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	commKey, err := cfg.CommKey()
	if err != nil {
		log.Fatalf("communication key: %v", err)
	}
	cipher, err := cryptox.NewCipher(commKey)
	if err != nil {
		log.Fatalf("communication key: %v", err)
	}

	deviceSalt, err := cfg.DeviceSalt()
	if err != nil {
		log.Fatalf("device salt: %v", err)
	}
	storageSalt, err := cfg.StorageSalt()
	if err != nil {
		log.Fatalf("storage salt: %v", err)
	}

	fingerprint := deviceid.NewProvider(deviceSalt, logger).Fingerprint()

	v, err := vault.New(cfg.DataDir, cryptox.NewAtRest(fingerprint, storageSalt), logger)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	auth := authfile.New(cfg.AuthFilePath, logger)
	client := api.NewHTTPClient(cfg, cipher, logger)
	b := broker.New(v, client, auth, fingerprint, buildinfo.Version(), cfg, logger)

	cli.NewApp(b, auth, logger).Run(ctx)
}
