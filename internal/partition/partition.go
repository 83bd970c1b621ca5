// Package partition holds the committed arrangement of cards across columns
// and computes provisional rearrangements for live drag previews.
package partition

import (
	"fmt"
	"slices"

	"github.com/evanschultz/kandrag/internal/domain"
)

// Partition maintains the authoritative card arrangement. Only Commit and
// Reset change it; every other operation is read-only.
type Partition struct {
	committed domain.Board
}

// New wraps a validated board.
func New(board domain.Board) (*Partition, error) {
	if err := board.Validate(); err != nil {
		return nil, err
	}
	return &Partition{committed: board.Clone()}, nil
}

// Snapshot returns a copy of the committed arrangement.
func (p *Partition) Snapshot() domain.Board {
	return p.committed.Clone()
}

// Preview computes the arrangement that would result from moving cardID to
// targetIndex of targetColumnID, without touching committed state. The index
// is expressed against the target list with the card already removed and is
// clamped to [0, len].
func (p *Partition) Preview(cardID, targetColumnID string, targetIndex int) (domain.Board, error) {
	return move(p.committed, cardID, targetColumnID, targetIndex)
}

// Commit performs the same computation as Preview and installs the result as
// the committed arrangement.
func (p *Partition) Commit(cardID, targetColumnID string, targetIndex int) (domain.Board, error) {
	next, err := move(p.committed, cardID, targetColumnID, targetIndex)
	if err != nil {
		return domain.Board{}, err
	}
	p.committed = next
	return next.Clone(), nil
}

// PositionsOf returns the committed card order of a column.
func (p *Partition) PositionsOf(columnID string) ([]string, error) {
	column, ok := p.committed.Columns[columnID]
	if !ok {
		return nil, fmt.Errorf("%w: column %q", domain.ErrNotFound, columnID)
	}
	return append([]string(nil), column.CardIDs...), nil
}

// Locate returns the committed placement of cardID.
func (p *Partition) Locate(cardID string) (domain.Placement, error) {
	columnID, idx, ok := p.committed.Locate(cardID)
	if !ok {
		return domain.Placement{}, fmt.Errorf("%w: card %q", domain.ErrNotFound, cardID)
	}
	return domain.Placement{ColumnID: columnID, Index: idx}, nil
}

// Reset replaces the committed arrangement with a fresh snapshot.
func (p *Partition) Reset(board domain.Board) error {
	if err := board.Validate(); err != nil {
		return err
	}
	p.committed = board.Clone()
	return nil
}

// move removes cardID from its column, inserts it at min(targetIndex, len) of
// the target column, and re-derives positions for the affected columns. The
// result is built on a clone so src is never modified and the two boards
// share no slices or maps.
func move(src domain.Board, cardID, targetColumnID string, targetIndex int) (domain.Board, error) {
	card, ok := src.Cards[cardID]
	if !ok {
		return domain.Board{}, fmt.Errorf("%w: card %q", domain.ErrNotFound, cardID)
	}
	if _, ok := src.Columns[targetColumnID]; !ok {
		return domain.Board{}, fmt.Errorf("%w: column %q", domain.ErrNotFound, targetColumnID)
	}

	out := src.Clone()
	source := out.Columns[card.ColumnID]
	source.CardIDs = slices.DeleteFunc(source.CardIDs, func(id string) bool { return id == cardID })
	out.Columns[source.ID] = source
	if source.ID != targetColumnID {
		reindex(out, source)
	}

	target := out.Columns[targetColumnID]
	idx := min(max(targetIndex, 0), len(target.CardIDs))
	target.CardIDs = slices.Insert(target.CardIDs, idx, cardID)
	out.Columns[target.ID] = target
	reindex(out, target)
	return out, nil
}

// reindex rewrites ColumnID and Position for every card listed by column.
func reindex(b domain.Board, column domain.Column) {
	for idx, id := range column.CardIDs {
		card := b.Cards[id]
		card.ColumnID = column.ID
		card.Position = idx
		b.Cards[id] = card
	}
}
