package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Board is the full set of columns plus their cards at a point in time.
type Board struct {
	ColumnIDs []string
	Columns   map[string]Column
	Cards     map[string]Card
}

// NewBoard builds a board from an ordered snapshot. Card positions are derived
// from list order.
func NewBoard(columns []ColumnInput) (Board, error) {
	b := Board{
		ColumnIDs: make([]string, 0, len(columns)),
		Columns:   make(map[string]Column, len(columns)),
		Cards:     map[string]Card{},
	}
	for _, raw := range columns {
		in, err := normalizeColumnInput(raw)
		if err != nil {
			return Board{}, err
		}
		if _, ok := b.Columns[in.ID]; ok {
			return Board{}, fmt.Errorf("%w: column %q", ErrDuplicateID, in.ID)
		}
		col := Column{ID: in.ID, Title: in.Title, CardIDs: make([]string, 0, len(in.Cards))}
		for _, rawCard := range in.Cards {
			card, err := normalizeCardInput(rawCard)
			if err != nil {
				return Board{}, err
			}
			if _, ok := b.Cards[card.ID]; ok {
				return Board{}, fmt.Errorf("%w: card %q", ErrDuplicateID, card.ID)
			}
			b.Cards[card.ID] = Card{
				ID:          card.ID,
				ColumnID:    col.ID,
				Position:    len(col.CardIDs),
				Title:       card.Title,
				Description: card.Description,
			}
			col.CardIDs = append(col.CardIDs, card.ID)
		}
		b.ColumnIDs = append(b.ColumnIDs, col.ID)
		b.Columns[col.ID] = col
	}
	return b, nil
}

// BoardFromPlacements builds a board from flat column and card rows, the shape
// storage returns. Columns keep the given order; cards are ordered by stored
// position with id as tie-break, then positions are re-derived contiguously.
func BoardFromPlacements(columns []Column, cards []Card) (Board, error) {
	inputs := make([]ColumnInput, 0, len(columns))
	byColumn := make(map[string][]Card, len(columns))
	for _, column := range columns {
		id := column.ID
		if err := checkID("column", id); err != nil {
			return Board{}, err
		}
		if _, ok := byColumn[id]; ok {
			return Board{}, fmt.Errorf("%w: column %q", ErrDuplicateID, id)
		}
		byColumn[id] = []Card{}
		inputs = append(inputs, ColumnInput{ID: id, Title: column.Title})
	}
	for _, card := range cards {
		columnID := card.ColumnID
		if _, ok := byColumn[columnID]; !ok {
			return Board{}, fmt.Errorf("%w: card %q references column %q", ErrNotFound, card.ID, card.ColumnID)
		}
		byColumn[columnID] = append(byColumn[columnID], card)
	}
	for idx := range inputs {
		list := byColumn[inputs[idx].ID]
		slices.SortStableFunc(list, func(a, b Card) int {
			if a.Position != b.Position {
				return a.Position - b.Position
			}
			return strings.Compare(a.ID, b.ID)
		})
		inputs[idx].Cards = make([]CardInput, 0, len(list))
		for _, card := range list {
			inputs[idx].Cards = append(inputs[idx].Cards, CardInput{
				ID:          card.ID,
				Title:       card.Title,
				Description: card.Description,
			})
		}
	}
	return NewBoard(inputs)
}

// Clone returns a deep copy that shares no mutable state with b.
func (b Board) Clone() Board {
	out := Board{
		ColumnIDs: slices.Clone(b.ColumnIDs),
		Columns:   make(map[string]Column, len(b.Columns)),
		Cards:     make(map[string]Card, len(b.Cards)),
	}
	for id, column := range b.Columns {
		out.Columns[id] = column.clone()
	}
	for id, card := range b.Cards {
		out.Cards[id] = card
	}
	return out
}

// Column returns the column with the given id.
func (b Board) Column(id string) (Column, bool) {
	column, ok := b.Columns[id]
	return column, ok
}

// Locate returns the column and list index of cardID.
func (b Board) Locate(cardID string) (string, int, bool) {
	card, ok := b.Cards[cardID]
	if !ok {
		return "", 0, false
	}
	return card.ColumnID, card.Position, true
}

// CardsIn returns the cards of a column in list order.
func (b Board) CardsIn(columnID string) []Card {
	column, ok := b.Columns[columnID]
	if !ok {
		return nil
	}
	out := make([]Card, 0, len(column.CardIDs))
	for _, id := range column.CardIDs {
		out = append(out, b.Cards[id])
	}
	return out
}

// CardCount returns the total number of cards.
func (b Board) CardCount() int {
	return len(b.Cards)
}

// Validate checks the partition invariant: every column is ordered exactly
// once, every card is listed by exactly one column, that column matches the card's ColumnID, and each position equals
// the card's list index.
func (b Board) Validate() error {
	if len(b.ColumnIDs) != len(b.Columns) {
		return fmt.Errorf("%w: %d ordered columns, %d defined", ErrInvalidBoard, len(b.ColumnIDs), len(b.Columns))
	}
	seen := make(map[string]string, len(b.Cards))
	ordered := make(map[string]struct{}, len(b.ColumnIDs))
	for _, columnID := range b.ColumnIDs {
		if _, dup := ordered[columnID]; dup {
			return fmt.Errorf("%w: column %q ordered twice", ErrInvalidBoard, columnID)
		}
		ordered[columnID] = struct{}{}
		column, ok := b.Columns[columnID]
		if !ok {
			return fmt.Errorf("%w: column %q is ordered but undefined", ErrInvalidBoard, columnID)
		}
		if column.ID != columnID {
			return fmt.Errorf("%w: column key %q holds id %q", ErrInvalidBoard, columnID, column.ID)
		}
		for idx, cardID := range column.CardIDs {
			if other, dup := seen[cardID]; dup {
				return fmt.Errorf("%w: card %q listed in %q and %q", ErrInvalidBoard, cardID, other, columnID)
			}
			seen[cardID] = columnID
			card, ok := b.Cards[cardID]
			if !ok {
				return fmt.Errorf("%w: column %q lists unknown card %q", ErrInvalidBoard, columnID, cardID)
			}
			if card.ColumnID != columnID || card.Position != idx {
				return fmt.Errorf("%w: card %q at %s[%d] records %s[%d]", ErrInvalidBoard, cardID, columnID, idx, card.ColumnID, card.Position)
			}
		}
	}
	if len(seen) != len(b.Cards) {
		return fmt.Errorf("%w: %d cards listed, %d defined", ErrInvalidBoard, len(seen), len(b.Cards))
	}
	return nil
}

// ChangedPlacements lists cards whose column or position differs between prev
// and next, ordered by next's column order and list index. Cards missing from
// either board are skipped.
func ChangedPlacements(prev, next Board) []PlacementChange {
	out := make([]PlacementChange, 0)
	for _, columnID := range next.ColumnIDs {
		for idx, cardID := range next.Columns[columnID].CardIDs {
			before, ok := prev.Cards[cardID]
			if !ok {
				continue
			}
			if before.ColumnID == columnID && before.Position == idx {
				continue
			}
			out = append(out, PlacementChange{
				CardID: cardID,
				From:   Placement{ColumnID: before.ColumnID, Index: before.Position},
				To:     Placement{ColumnID: columnID, Index: idx},
			})
		}
	}
	return out
}
