package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/kandrag/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kandrag.snapshot.v1"

// Snapshot is the portable JSON form of a board. Column and card order in the
// document is board order.
type Snapshot struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Columns    []SnapshotColumn `json:"columns"`
}

// SnapshotColumn represents snapshot column data used by this package.
type SnapshotColumn struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Cards []SnapshotCard `json:"cards"`
}

// SnapshotCard represents snapshot card data used by this package.
type SnapshotCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ExportSnapshot captures the stored board.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	board, err := s.LoadBoard(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotFromBoard(board, s.clock().UTC()), nil
}

// ImportSnapshot replaces the stored board, including the move ledger, with snap.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	board, err := snap.Board()
	if err != nil {
		return err
	}
	now := s.clock().UTC()
	columns := make([]ColumnRecord, 0, len(board.ColumnIDs))
	cards := make([]CardRecord, 0, board.CardCount())
	for idx, columnID := range board.ColumnIDs {
		column := board.Columns[columnID]
		columns = append(columns, ColumnRecord{ID: column.ID, Title: column.Title, Position: idx})
		for _, card := range board.CardsIn(columnID) {
			cards = append(cards, CardRecord{
				ID:          card.ID,
				ColumnID:    card.ColumnID,
				Position:    card.Position,
				Title:       card.Title,
				Description: card.Description,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return s.repo.ReplaceBoard(ctx, columns, cards)
}

// SnapshotFromBoard renders board in snapshot form.
func SnapshotFromBoard(board domain.Board, exportedAt time.Time) Snapshot {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: exportedAt,
		Columns:    make([]SnapshotColumn, 0, len(board.ColumnIDs)),
	}
	for _, columnID := range board.ColumnIDs {
		column := board.Columns[columnID]
		out := SnapshotColumn{
			ID:    column.ID,
			Title: column.Title,
			Cards: make([]SnapshotCard, 0, column.Len()),
		}
		for _, card := range board.CardsIn(columnID) {
			out.Cards = append(out.Cards, SnapshotCard{
				ID:          card.ID,
				Title:       card.Title,
				Description: card.Description,
			})
		}
		snap.Columns = append(snap.Columns, out)
	}
	return snap
}

// Validate checks the version and required ids.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedSnapshot, s.Version)
	}
	for i, column := range s.Columns {
		if strings.TrimSpace(column.ID) == "" {
			return fmt.Errorf("columns[%d].id is required", i)
		}
		for j, card := range column.Cards {
			if strings.TrimSpace(card.ID) == "" {
				return fmt.Errorf("columns[%d].cards[%d].id is required", i, j)
			}
		}
	}
	return nil
}

// Board validates the snapshot and builds the board it describes.
func (s *Snapshot) Board() (domain.Board, error) {
	if err := s.Validate(); err != nil {
		return domain.Board{}, err
	}
	inputs := make([]domain.ColumnInput, 0, len(s.Columns))
	for _, column := range s.Columns {
		in := domain.ColumnInput{
			ID:    column.ID,
			Title: column.Title,
			Cards: make([]domain.CardInput, 0, len(column.Cards)),
		}
		for _, card := range column.Cards {
			in.Cards = append(in.Cards, domain.CardInput{
				ID:          card.ID,
				Title:       card.Title,
				Description: card.Description,
			})
		}
		inputs = append(inputs, in)
	}
	return domain.NewBoard(inputs)
}
