// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// DefaultMoveListLimit bounds move listings when callers omit a limit.
const DefaultMoveListLimit = 50

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrMovesUnavailable reports a server composed without move support.
var ErrMovesUnavailable = errors.New("move surface unavailable")

// CardView is one card as seen by transport callers.
type CardView struct {
	ID          string `json:"id"`
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ColumnView is one column and its cards in order.
type ColumnView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Cards []CardView `json:"cards"`
}

// BoardView is the committed board returned to HTTP and MCP callers.
type BoardView struct {
	CapturedAt time.Time    `json:"captured_at"`
	CardCount  int          `json:"card_count"`
	Columns    []ColumnView `json:"columns"`
}

// MoveRequest asks for one card to land at index in column_id.
type MoveRequest struct {
	CardID   string `json:"card_id"`
	ColumnID string `json:"column_id"`
	Index    int    `json:"index"`
}

// MoveResult reports one committed move. Moved is false for a drop in place.
type MoveResult struct {
	CardID       string `json:"card_id"`
	FromColumnID string `json:"from_column_id"`
	FromIndex    int    `json:"from_index"`
	ToColumnID   string `json:"to_column_id"`
	ToIndex      int    `json:"to_index"`
	Moved        bool   `json:"moved"`
}

// MoveEntry is one row of the move ledger.
type MoveEntry struct {
	ID           int64     `json:"id"`
	CardID       string    `json:"card_id"`
	FromColumnID string    `json:"from_column_id"`
	FromIndex    int       `json:"from_index"`
	ToColumnID   string    `json:"to_column_id"`
	ToIndex      int       `json:"to_index"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// BoardReader resolves the committed board.
type BoardReader interface {
	BoardView(context.Context) (BoardView, error)
}

// MoveService captures optional move operations exposed by app services.
type MoveService interface {
	MoveCard(context.Context, MoveRequest) (MoveResult, error)
	ListMoves(context.Context, int) ([]MoveEntry, error)
}
