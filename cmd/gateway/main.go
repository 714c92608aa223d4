package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	api "github.com/mind-engage/pruefungstrainer/internal/api/http"
	auth "github.com/mind-engage/pruefungstrainer/internal/auth/middleware"
	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/db"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
	"github.com/mind-engage/pruefungstrainer/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	setupLogger(cfg)

	mods, err := config.LoadModules(cfg.ModuleConfig)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ModuleConfig).Msg("module config")
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("db open failed")
	}
	defer dbh.Close()
	store := results.NewSQLStore(dbh)

	// --- Content ---
	bs, err := storage.NewFSStore(cfg.ContentPath)
	if err != nil {
		log.Fatal().Err(err).Msg("content store")
	}
	lib := content.NewLibrary(bs)
	for _, m := range mods.List {
		if _, err := lib.Catalog(m.DataFile); err != nil {
			log.Warn().Err(err).Str("module", m.Name).Msg("content not loaded yet")
		}
	}

	// --- Sessions ---
	mgr := session.NewManager(lib, mods,
		session.WithResults(store),
		session.WithLogger(log.Logger.With().Str("component", "session").Logger()),
		session.WithIdleTimeout(cfg.SessionIdle),
	)
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go mgr.Run(runCtx, time.Minute)

	authSvc := auth.NewAuthService(cfg.AuthSecret)
	if cfg.AdminPassHash == "" {
		log.Info().Msg("ADMIN_PASS_HASH not set, admin login disabled")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Config:   cfg,
			Log:      log.Logger.With().Str("component", "http").Logger(),
			Auth:     authSvc,
			Library:  lib,
			Blobs:    bs,
			Sessions: mgr,
			Results:  store,
			DB:       dbh,
			Events:   store.Events(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBDriver).Int("modules", len(mods.List)).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}

func setupLogger(cfg config.Config) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}
