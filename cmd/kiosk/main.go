package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"dormhub/api/internal/cache"
	"dormhub/api/internal/config"
	"dormhub/api/internal/events"
	"dormhub/api/internal/kiosk"
	"dormhub/api/internal/log"
	"dormhub/api/internal/reconcile"
)

const credentialsKey = "credentials"

// The kiosk binary keeps a hall display's idea of "who is signed in"
// consistent with the dormitory API, surviving restarts and network blips
// on its local cache.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	bus := events.NewRedisBus(redisClient, cfg.Events.Channel, logger)
	client := kiosk.NewClient(cfg.Kiosk, cfg.Reconciler, bus, logger)

	fileCache, err := kiosk.NewFileCache(cfg.Kiosk.CacheDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open state cache")
	}
	restoreCredentials(ctx, fileCache, client, logger)

	reconciler := reconcile.New(client, client, fileCache, reconcile.Config{
		InitTimeout: cfg.Reconciler.InitTimeout,
	}, logger)

	if err := reconciler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("reconciler start failed")
	}
	defer reconciler.Close()

	views := reconciler.Watch()
	for {
		select {
		case <-ctx.Done():
			persistCredentials(fileCache, client, logger)
			logger.Info().Msg("kiosk exiting")
			return
		case view := <-views:
			entry := logger.Info().
				Bool("ready", view.Ready).
				Bool("loggedIn", view.LoggedIn)
			if view.Profile != nil {
				entry = entry.
					Str("identity", view.Profile.ID).
					Str("role", view.Profile.Role).
					Bool("infoComplete", view.Profile.InfoComplete)
			}
			entry.Msg("view changed")
			persistCredentials(fileCache, client, logger)
		}
	}
}

func restoreCredentials(ctx context.Context, fileCache *kiosk.FileCache, client *kiosk.Client, logger zerolog.Logger) {
	raw, err := fileCache.Get(ctx, credentialsKey)
	if err != nil {
		if !errors.Is(err, reconcile.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("credential restore failed")
		}
		return
	}

	var creds kiosk.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		logger.Warn().Err(err).Msg("stored credentials unreadable")
		return
	}
	client.SetCredentials(creds)
}

func persistCredentials(fileCache *kiosk.FileCache, client *kiosk.Client, logger zerolog.Logger) {
	raw, err := json.Marshal(client.Credentials())
	if err != nil {
		logger.Warn().Err(err).Msg("credential encode failed")
		return
	}
	if err := fileCache.Set(context.Background(), credentialsKey, string(raw)); err != nil {
		logger.Warn().Err(err).Msg("credential persist failed")
	}
}
