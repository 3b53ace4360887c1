package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/blindauth/internal/server"
	"github.com/dmitrijs2005/blindauth/internal/server/auth"
	"github.com/dmitrijs2005/blindauth/internal/server/config"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blindauth/internal/server/services"
)

// adminIP is recorded as the revoking address for CLI-initiated revocations.
const adminIP = "authctl"

type backend interface {
	Migrate(ctx context.Context) error
	RevokeAll(ctx context.Context, userID string) (int64, error)
	DeleteUser(ctx context.Context, userID string) error
	Close() error
}

type dbBackend struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	auth  *services.AuthService
}

var openBackend = func(ctx context.Context, cfg *config.Config) (backend, error) {
	logger, err := server.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey), cfg.Issuer, cfg.Audience, cfg.AccessTokenValidityDuration)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repos := repomanager.NewPostgresRepositoryManager()
	return &dbBackend{
		db:    db,
		repos: repos,
		auth:  services.NewAuthService(db, repos, codec, cfg, services.WithLogger(logger.With("cmd", "authctl"))),
	}, nil
}

func (b *dbBackend) Migrate(ctx context.Context) error {
	return b.repos.RunMigrations(ctx, b.db)
}

func (b *dbBackend) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return b.auth.RevokeAll(ctx, userID, adminIP)
}

func (b *dbBackend) DeleteUser(ctx context.Context, userID string) error {
	return b.auth.DeleteAccount(ctx, userID, adminIP)
}

func (b *dbBackend) Close() error {
	return b.db.Close()
}

