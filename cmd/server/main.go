package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dolmen/pos/internal/config"
	"dolmen/pos/internal/httpapi"
	"dolmen/pos/internal/receipt"
	"dolmen/pos/internal/sequence"
	"dolmen/pos/internal/service"
	"dolmen/pos/internal/store"
	"dolmen/pos/internal/store/memory"
	pgstore "dolmen/pos/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	setupLogger(cfg)

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seed := store.DefaultSeed(cfg.SeedAdminPassword, cfg.SeedStaffPassword)

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate schema")
		}
		if err := pg.Seed(ctx, seed); err != nil {
			log.Fatal().Err(err).Msg("seed store")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Str("repository", "postgres").Msg("store ready")
	} else {
		mem, err := memory.NewWithSeed(seed)
		if err != nil {
			log.Fatal().Err(err).Msg("seed in-memory store")
		}
		repo = mem
		log.Info().Str("repository", "memory").Msg("store ready")
	}

	var seq sequence.Sequencer = sequence.NewLocal()
	if cfg.RedisAddr != "" {
		redisSeq := sequence.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisSeq.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using local receipt sequence")
			_ = redisSeq.Close()
		} else {
			seq = redisSeq
			closers = append(closers, redisSeq.Close)
			log.Info().Str("sequence", "redis").Msg("receipt sequence ready")
		}
	}

	receipts := receipt.NewWriter(cfg.ReceiptDir, cfg.CurrencySymbol, cfg.ReceiptPDF)
	svc := service.New(repo, receipts, seq, service.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		Location:          time.Local,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.CurrencySymbol)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("receipts", receipts.Dir()).Msg("POS server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if !cfg.IsProduction() {
		return nil
	}
	if err := validatePasswordStrength(cfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("SEED_ADMIN_PASSWORD is too weak: %w", err)
	}
	if err := validatePasswordStrength(cfg.SeedStaffPassword); err != nil {
		return fmt.Errorf("SEED_STAFF_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects short passwords, the development defaults,
// single repeated characters and plain ascending or descending runs.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("must be at least 8 characters")
	}
	known := map[string]bool{
		store.DefaultAdminPassword: true, store.DefaultStaffPassword: true,
		"password": true, "12345678": true, "87654321": true, "qwertyui": true,
		"password1": true, "admin1234": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}
