package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS columns (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			column_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(column_id) REFERENCES columns(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_column_position ON cards(column_id, position);`,
		`CREATE TABLE IF NOT EXISTS move_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id TEXT NOT NULL,
			from_column_id TEXT NOT NULL,
			from_index INTEGER NOT NULL,
			to_column_id TEXT NOT NULL,
			to_index INTEGER NOT NULL,
			occurred_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_move_events_occurred_at ON move_events(occurred_at, id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// ListColumns returns columns in board order.
func (r *Repository) ListColumns(ctx context.Context) ([]app.ColumnRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, position
		FROM columns
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.ColumnRecord, 0)
	for rows.Next() {
		var c app.ColumnRecord
		if err := rows.Scan(&c.ID, &c.Title, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateColumn creates column.
func (r *Repository) CreateColumn(ctx context.Context, c app.ColumnRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO columns(id, title, position)
		VALUES (?, ?, ?)
	`, c.ID, c.Title, c.Position)
	return err
}

// ListCards returns every card ordered by column and position.
func (r *Repository) ListCards(ctx context.Context) ([]app.CardRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, column_id, position, title, description, created_at, updated_at
		FROM cards
		ORDER BY column_id ASC, position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.CardRecord, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

// GetCard returns card.
func (r *Repository) GetCard(ctx context.Context, id string) (app.CardRecord, error) {
	return getCardByID(ctx, r.db, id)
}

// CreateCard creates card.
func (r *Repository) CreateCard(ctx context.Context, c app.CardRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards(id, column_id, position, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ColumnID, c.Position, c.Title, c.Description, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

// ApplyMove sets the card's column and index, closes the gap it left, opens a
// slot at the destination and appends the move to the ledger in one
// transaction. The stored placement is the removal source; the destination
// index is clamped to the destination length.
func (r *Repository) ApplyMove(ctx context.Context, ev domain.MoveCommitted, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err := getCardByID(ctx, tx, ev.CardID)
	if err != nil {
		return err
	}
	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM columns WHERE id = ?`, ev.ToColumnID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		err = fmt.Errorf("%w: column %q", app.ErrNotFound, ev.ToColumnID)
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards SET position = position - 1
		WHERE column_id = ? AND position > ? AND id <> ?
	`, card.ColumnID, card.Position, card.ID); err != nil {
		return err
	}

	var length int
	if err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM cards WHERE column_id = ? AND id <> ?
	`, ev.ToColumnID, card.ID).Scan(&length); err != nil {
		return err
	}
	index := min(max(ev.ToIndex, 0), length)

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards SET position = position + 1
		WHERE column_id = ? AND position >= ? AND id <> ?
	`, ev.ToColumnID, index, card.ID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE cards SET column_id = ?, position = ?, updated_at = ?
		WHERE id = ?
	`, ev.ToColumnID, index, ts(normalizeEventTS(at)), card.ID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	ev.ToIndex = index
	if err = insertMoveEvent(ctx, tx, ev, at); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListMoveEvents returns ledger entries, newest first.
func (r *Repository) ListMoveEvents(ctx context.Context, limit int) ([]domain.MoveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, card_id, from_column_id, from_index, to_column_id, to_index, occurred_at
		FROM move_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MoveRecord, 0)
	for rows.Next() {
		var (
			rec         domain.MoveRecord
			occurredRaw string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Move.CardID,
			&rec.Move.FromColumnID,
			&rec.Move.FromIndex,
			&rec.Move.ToColumnID,
			&rec.Move.ToIndex,
			&occurredRaw,
		); err != nil {
			return nil, err
		}
		rec.OccurredAt = parseTS(occurredRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReplaceBoard clears columns, cards and the ledger and writes the given rows.
func (r *Repository) ReplaceBoard(ctx context.Context, columns []app.ColumnRecord, cards []app.CardRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM move_events`,
		`DELETE FROM cards`,
		`DELETE FROM columns`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for _, c := range columns {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO columns(id, title, position)
			VALUES (?, ?, ?)
		`, c.ID, c.Title, c.Position); err != nil {
			return fmt.Errorf("insert column %q: %w", c.ID, err)
		}
	}
	for _, c := range cards {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cards(id, column_id, position, title, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.ColumnID, c.Position, c.Title, c.Description, ts(normalizeEventTS(c.CreatedAt)), ts(normalizeEventTS(c.UpdatedAt))); err != nil {
			return fmt.Errorf("insert card %q: %w", c.ID, err)
		}
	}

	err = tx.Commit()
	return err
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// getCardByID returns one card or app.ErrNotFound.
func getCardByID(ctx context.Context, q queryRower, id string) (app.CardRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, column_id, position, title, description, created_at, updated_at
		FROM cards
		WHERE id = ?
	`, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return app.CardRecord{}, fmt.Errorf("%w: card %q", app.ErrNotFound, id)
	}
	return card, err
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertMoveEvent inserts a move ledger record.
func insertMoveEvent(ctx context.Context, execer execerContext, ev domain.MoveCommitted, at time.Time) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO move_events(card_id, from_column_id, from_index, to_column_id, to_index, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.CardID,
		ev.FromColumnID,
		ev.FromIndex,
		ev.ToColumnID,
		ev.ToIndex,
		ts(normalizeEventTS(at)),
	)
	if err != nil {
		return fmt.Errorf("insert move event: %w", err)
	}
	return nil
}

// normalizeEventTS ensures event timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanCard handles scan card.
func scanCard(s scanner) (app.CardRecord, error) {
	var (
		c          app.CardRecord
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.ColumnID, &c.Position, &c.Title, &c.Description, &createdRaw, &updatedRaw); err != nil {
		return app.CardRecord{}, err
	}
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
