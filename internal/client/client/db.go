// Package client wires the local database: it opens the SQLite file, runs
// embedded schema migrations, and hands out the repositories the rest of
// the client builds on.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/migrations"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/repositories/metadata"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/store"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/syncqueue"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/webcache"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Records  *store.SQLiteRepository
	Queue    *syncqueue.SQLiteRepository
	Cache    *webcache.SQLiteRepository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Records:  store.NewSQLiteRepository(db),
		Queue:    syncqueue.NewSQLiteRepository(db),
		Cache:    webcache.NewSQLiteRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
