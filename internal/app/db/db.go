/*
Package db persists users and direct messages.

Queries is the PostgreSQL implementation (pgx pool, goose migrations embedded
in the binary). MemoryStore keeps the same data in process memory for
development and tests. Both satisfy Store.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// CreateUserParams holds the fields for a new account.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	AuthProvider string
}

// Store is the persistence surface used by the chat core and the HTTP handlers.
type Store interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (user.User, error)
	GetUserByID(ctx context.Context, id int64) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error)
	UpdateUserAvatar(ctx context.Context, id int64, avatarURL string) (user.User, error)

	CreateMessage(ctx context.Context, arg message.New) (message.Message, error)
	GetMessage(ctx context.Context, id int64) (message.Message, error)
	ListMessages(ctx context.Context, filter message.Filter) ([]message.Message, error)
	ListConversationPartners(ctx context.Context, userID int64) ([]user.User, error)
	MarkMessageRead(ctx context.Context, id int64, receiverID int64) error
	CountUnread(ctx context.Context, userID int64) (int64, error)

	Ping(ctx context.Context) error
	Close()
}

// NewPool initializes a PostgreSQL connection pool and applies pending migrations.
func NewPool(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Open connects to PostgreSQL, migrates, and returns the Queries store.
func Open(dsn string) (*Queries, error) {
	pool, err := NewPool(dsn)
	if err != nil {
		return nil, err
	}
	return New(pool), nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.")
	return nil
}
