package domain

import "time"

// MoveCommitted is emitted once per committed drop. It carries enough for a
// persistence collaborator to set the card's column and shift its siblings.
type MoveCommitted struct {
	CardID       string
	FromColumnID string
	FromIndex    int
	ToColumnID   string
	ToIndex      int
}

// From returns the origin placement.
func (e MoveCommitted) From() Placement {
	return Placement{ColumnID: e.FromColumnID, Index: e.FromIndex}
}

// To returns the destination placement.
func (e MoveCommitted) To() Placement {
	return Placement{ColumnID: e.ToColumnID, Index: e.ToIndex}
}

// Moved reports whether the card actually changed column or index.
func (e MoveCommitted) Moved() bool {
	return e.From() != e.To()
}

// MoveRecord is one persisted entry of the move ledger.
type MoveRecord struct {
	ID         int64
	Move       MoveCommitted
	OccurredAt time.Time
}
