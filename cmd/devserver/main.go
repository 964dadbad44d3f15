package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/credbroker/internal/config"
	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/devserver"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

func main() {

	addr := flag.String("addr", ":8787", "listen address")
	codes := flag.String("codes", "DEV-CODE-1,DEV-CODE-2:autoswitch", "activation codes to provision, comma separated, append :autoswitch for the autoswitch slot")
	secret := flag.String("jwt-secret", "dev-jwt-secret", "session token signing secret")
	ttl := flag.Duration("session-ttl", time.Hour, "session lifetime")
	flag.Parse()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	commKey, err := cfg.CommKey()
	if err != nil {
		log.Fatalf("communication key: %v", err)
	}
	cipher, err := cryptox.NewCipher(commKey)
	if err != nil {
		log.Fatalf("communication key: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	s := devserver.New(cipher, []byte(*secret), *ttl, logger)

	for _, entry := range strings.Split(*codes, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		code, autoSwitch := entry, false
		if c, ok := strings.CutSuffix(entry, ":autoswitch"); ok {
			code, autoSwitch = c, true
		}
		if err := s.ProvisionCode(code, autoSwitch, 100); err != nil {
			log.Fatalf("provision %s: %v", code, err)
		}
		log.Printf("provisioned code %s (autoswitch=%v)", code, autoSwitch)
	}

	s.SetTokens([]devserver.TokenRecord{
		{
			ID:           "dev-token-1",
			Email:        "dev@example.com",
			Name:         "dev",
			AccessToken:  "dev-access-token",
			RefreshToken: "dev-refresh-token",
			UpdatedAt:    time.Now().Unix(),
			Valid:        true,
		},
	})

	log.Printf("dev authorization server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, s.Handler()); err != nil {
		log.Fatalf("%v", err)
	}
}
