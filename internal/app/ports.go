package app

import (
	"context"
	"time"

	"github.com/evanschultz/kandrag/internal/domain"
)

// ColumnRecord is a persisted column with its board position.
type ColumnRecord struct {
	ID       string
	Title    string
	Position int
}

// CardRecord is a persisted card placement with its content.
type CardRecord struct {
	ID          string
	ColumnID    string
	Position    int
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository stores the board outside the engine.
type Repository interface {
	ListColumns(context.Context) ([]ColumnRecord, error)
	CreateColumn(context.Context, ColumnRecord) error

	ListCards(context.Context) ([]CardRecord, error)
	GetCard(context.Context, string) (CardRecord, error)
	CreateCard(context.Context, CardRecord) error

	// ApplyMove sets the card's column and index and shifts its siblings in
	// both columns, then appends the move to the ledger, atomically.
	ApplyMove(context.Context, domain.MoveCommitted, time.Time) error
	ListMoveEvents(context.Context, int) ([]domain.MoveRecord, error)

	// ReplaceBoard drops every column, card and ledger row and writes board.
	ReplaceBoard(context.Context, []ColumnRecord, []CardRecord) error
}
