package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turfhub/internal/logging"
	"turfhub/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Journal is an append-only SQLite log of domain events.
type Journal struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewJournal(path string, logger *zerolog.Logger) (*Journal, error) {
	// Создаем директорию для БД, если её нет
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// sqlite пишет в один поток; для :memory: это еще и одна база на соединение
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	j := &Journal{db: db, logger: logging.Component(logger, "journal")}
	j.logger.Info().Str("path", path).Msg("journal initialized")
	return j, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS activity_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            entity_id TEXT NOT NULL DEFAULT '',
            payload TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_entity_id ON activity_log(entity_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Append stores the entry and fills its ID. A zero CreatedAt is set to now.
func (j *Journal) Append(ctx context.Context, entry *models.ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}

	result, err := j.db.ExecContext(ctx,
		`INSERT INTO activity_log (event_type, entity_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		entry.EventType, entry.EntityID, payload, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 {
		limit = models.DefaultActivityLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, event_type, entity_id, payload, created_at FROM activity_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ActivityEntry, 0, limit)
	for rows.Next() {
		var e models.ActivityEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityID, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *Journal) Close() error {
	return j.db.Close()
}
