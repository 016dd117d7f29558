package repository

import (
	"context"
	"database/sql"
	"fmt"
	"order-dispatch/internal/models"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements JournalRepository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// initSchema initializes the database schema
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS order_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		type TEXT NOT NULL,
		order_id INTEGER,
		class TEXT,
		bot_id INTEGER,
		orphaned INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_events_run ON order_events(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(run_id, order_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// AppendEvent stores an event. Appending the same event id twice is a no-op,
// so publishers may retry freely.
func (r *SQLiteRepository) AppendEvent(ctx context.Context, ev *models.Event) error {
	query := `
		INSERT OR IGNORE INTO order_events (id, run_id, type, order_id, class, bot_id, orphaned, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	// zero ids and empty class are stored as NULL
	var orderID, botID, class interface{}
	if ev.OrderID != 0 {
		orderID = int64(ev.OrderID)
	}
	if ev.BotID != 0 {
		botID = int64(ev.BotID)
	}
	if ev.Class != "" {
		class = string(ev.Class)
	}

	_, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.RunID,
		string(ev.Type),
		orderID,
		class,
		botID,
		ev.Orphaned,
		ev.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// ListEvents returns the most recent events of a run, oldest first
func (r *SQLiteRepository) ListEvents(ctx context.Context, runID string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, run_id, type, order_id, class, bot_id, orphaned, at FROM (
			SELECT seq, id, run_id, type, order_id, class, bot_id, orphaned, at
			FROM order_events
			WHERE run_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListOrderEvents returns every event that mentions the order, oldest first
func (r *SQLiteRepository) ListOrderEvents(ctx context.Context, runID string, orderID models.OrderID) ([]*models.Event, error) {
	query := `
		SELECT id, run_id, type, order_id, class, bot_id, orphaned, at
		FROM order_events
		WHERE run_id = ? AND order_id = ?
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID, int64(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEventsByType returns how many events of each type a run recorded
func (r *SQLiteRepository) CountEventsByType(ctx context.Context, runID string) (map[models.EventType]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM order_events WHERE run_id = ? GROUP BY type", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventType]int)
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[models.EventType(typ)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event counts: %w", err)
	}

	return counts, nil
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	events := make([]*models.Event, 0)
	for rows.Next() {
		var ev models.Event
		var typ string
		var orderID, botID sql.NullInt64
		var class sql.NullString
		var at int64

		err := rows.Scan(
			&ev.ID,
			&ev.RunID,
			&typ,
			&orderID,
			&class,
			&botID,
			&ev.Orphaned,
			&at,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.Type = models.EventType(typ)
		if orderID.Valid {
			ev.OrderID = models.OrderID(orderID.Int64)
		}
		if botID.Valid {
			ev.BotID = models.BotID(botID.Int64)
		}
		if class.Valid {
			ev.Class = models.OrderClass(class.String)
		}
		ev.At = time.Unix(0, at)

		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}
