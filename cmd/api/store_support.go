package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/member-gate/internal/config"
	"github.com/yourusername/member-gate/internal/migrations"
	"github.com/yourusername/member-gate/internal/session"
	"github.com/yourusername/member-gate/internal/users"
)

// storeSet は起動時に組み立てる永続化コンポーネント一式です。
type storeSet struct {
	users    users.Store
	sessions session.Store
	sweeper  *session.Sweeper
	db       *sql.DB
	rdb      *redis.Client
}

// Close は保持しているコネクションを閉じます。
func (s *storeSet) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}

// setupStores はユーザーストアとセッションストアを初期化します。
// releaseモードでは接続設定が必須（config.Validateで検証済み）。
// ローカル開発で未設定の場合はインメモリ実装で起動します。
func setupStores(cfg *config.Config) (*storeSet, error) {
	set := &storeSet{}

	if cfg.DatabaseDSN != "" {
		db, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := runMigrations(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		set.db = db
		set.users = users.NewPostgresStore(db)
	} else {
		log.Printf("DATABASE_DSN is empty; using in-memory user store")
		set.users = users.NewMemoryStore()
	}

	if cfg.SessionRedisURL != "" {
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		set.rdb = redis.NewClient(opt)
		set.sessions = session.NewRedisStore(set.rdb)

		sweeper, err := session.NewSweeper(
			cfg.SessionRedisURL,
			set.sessions,
			time.Duration(cfg.SessionSweepMinutes)*time.Minute,
			log.Default(),
		)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to set up session sweeper: %w", err)
		}
		set.sweeper = sweeper
	} else {
		// インメモリ実装は参照時に期限切れを破棄するので掃除タスクは不要
		log.Printf("SESSION_REDIS_URL is empty; using in-memory session store")
		set.sessions = session.NewMemoryStore()
	}

	return set, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(context.Background(), db, ".")
}
