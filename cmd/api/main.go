/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/jira"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/openai"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/s3"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/adapters/telegram"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/cache"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	apihttp "github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/http"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/jobs"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/logger"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/repo"
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		deps services.Deps
		lock jobs.Locker
	)

	// DB is optional; without it runs are not recorded and the cron is not coordinated
	if cfg.DBDSN != "" {
		if err := repo.Migrate(cfg.DBDSN, log); err != nil {
			log.Fatal().Err(err).Msg("migrate failed")
		}
		db, err := repo.Open(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("db open failed")
		}
		defer db.Close()
		repository := repo.NewRepository(db, log)
		deps.Runs = repository
		lock = repository
	}

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.SprintCacheTTL)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, sprint cache disabled")
		} else {
			defer rc.Close()
			deps.Cache = rc
		}
	}

	if cfg.HasS3() {
		arch, err := s3.NewArchive(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			log.Error().Err(err).Msg("s3 archive disabled")
		} else {
			deps.Archive = arch
		}
	}
	if cfg.HasTelegram() {
		deps.TG = telegram.NewClient(cfg, log)
	}
	if cfg.OpenAIKey != "" {
		deps.LLM = openai.NewClient(cfg, log)
	}

	jiraOpts := jira.Options{
		RelayURL:       cfg.JiraRelayURL,
		Timeout:        cfg.HTTPTimeout,
		RateLimitRPS:   cfg.JiraRateLimitRPS,
		RateLimitBurst: cfg.JiraRateLimitBurst,
	}
	clients := func(conn jira.Connection) services.JiraClient {
		return jira.NewClient(conn, jiraOpts, log)
	}
	svc := services.New(cfg, log, clients, deps)

	cron, err := jobs.NewCron(cfg, log, svc, lock)
	if err != nil {
		log.Fatal().Err(err).Msg("cron setup failed")
	}
	cron.Start()
	defer cron.Stop()

	h := apihttp.NewHandlers(cfg, log, svc, cron)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apihttp.NewRouter(cfg, log, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
