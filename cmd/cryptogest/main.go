package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/abrahampo1/cryptogest-sub001/internal/backup"
	"github.com/abrahampo1/cryptogest-sub001/internal/bridge"
	"github.com/abrahampo1/cryptogest-sub001/internal/cli"
	"github.com/abrahampo1/cryptogest-sub001/internal/cloud"
	"github.com/abrahampo1/cryptogest-sub001/internal/config"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
	"github.com/abrahampo1/cryptogest-sub001/internal/secretstore"
	"github.com/abrahampo1/cryptogest-sub001/internal/vault"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	reg, err := registry.Open(cfg.DataRoot)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	// Without an OS credential vault the passkey commands degrade; everything
	// else works password-only.
	secrets, err := secretstore.New()
	if err != nil {
		logger.Warn(ctx, "credential vault unavailable, passkey disabled", "detail", err.Error())
		secrets = nil
	}

	vaults := vault.NewManager(reg, secrets, logger)
	defer func() {
		if err := vaults.Lock(ctx); err != nil {
			logger.Error(ctx, "final lock failed", "detail", err.Error())
		}
	}()

	creds := cloud.NewFileCredentialStore(cfg.DataRoot)
	cloudClient := cloud.NewClient(cfg.CloudEndpoint, cfg.RequestTimeout, cfg.ProgressInterval, creds, logger)

	router := bridge.NewRouter(reg, vaults, backup.NewPackager(logger), cloudClient, logger)

	cli.NewApp(router).Run(ctx)
}
