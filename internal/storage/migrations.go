package storage

import (
	"embed"
	"fmt"
	"log/slog"
	"path"
)

//go:embed migrations
var migrationFS embed.FS

// migrations run in order; each is applied once per database.
var migrations = []string{
	"001_create_players.sql",
	"002_create_plays.sql",
	"003_create_player_season_stats.sql",
	"004_create_game_stats.sql",
	"005_create_advanced_metrics.sql",
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, name := range migrations {
		if err := db.runMigration(name); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (db *DB) runMigration(name string) error {
	var applied int
	err := db.conn.QueryRow(db.rebind("SELECT COUNT(1) FROM schema_migrations WHERE version = ?"), name).Scan(&applied)
	if err != nil {
		return err
	}
	if applied > 0 {
		return nil
	}

	content, err := migrationFS.ReadFile(path.Join("migrations", db.dialect.String(), name))
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return err
	}
	if _, err := tx.Exec(db.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("applied migration", "version", name, "dialect", db.dialect.String())
	return nil
}
