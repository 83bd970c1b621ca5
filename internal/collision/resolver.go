// Package collision picks the single best drop target for a dragged card
// using closest-corners distance between rectangles.
package collision

import (
	"github.com/evanschultz/kandrag/internal/domain"
)

// Kind distinguishes droppable candidates.
type Kind int

// Candidate kinds. Cards are more specific than column containers and win
// exact distance ties.
const (
	KindColumn Kind = iota
	KindCard
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCard:
		return "card"
	case KindColumn:
		return "column"
	default:
		return "unknown"
	}
}

// Candidate is one droppable rectangle: a column container or a visible card.
type Candidate struct {
	Kind Kind
	ID   string
	Rect Rect
}

// CardCandidate builds a card candidate.
func CardCandidate(cardID string, rect Rect) Candidate {
	return Candidate{Kind: KindCard, ID: cardID, Rect: rect}
}

// ColumnCandidate builds a column container candidate.
func ColumnCandidate(columnID string, rect Rect) Candidate {
	return Candidate{Kind: KindColumn, ID: columnID, Rect: rect}
}

// Target is a drop target: the column and post-removal index the dragged card
// would land at if released now.
type Target struct {
	ColumnID string
	Index    int
}

// Resolver selects drop targets. It keeps no state between calls.
type Resolver struct {
	// MaxDistance discards winners farther than this many units. Zero means unlimited.
	MaxDistance float64
}

// Resolve returns the target for the dragged card's rectangle, or false when
// no candidate qualifies. Indices are computed against board with the dragged
// card removed, so a card winner yields "insert before that card" and a column
// winner yields "append". Candidates naming the dragged card or ids unknown to
// board are ignored.
func (r Resolver) Resolve(board domain.Board, draggedID string, dragged Rect, candidates []Candidate) (Target, bool) {
	var (
		best     Candidate
		bestDist float64
		found    bool
	)
	for _, candidate := range candidates {
		if !known(board, draggedID, candidate) {
			continue
		}
		dist := CornerDistance(dragged, candidate.Rect)
		if !found || dist < bestDist || (dist == bestDist && candidate.Kind == KindCard && best.Kind != KindCard) {
			best, bestDist, found = candidate, dist, true
		}
	}
	if !found {
		return Target{}, false
	}
	if r.MaxDistance > 0 && bestDist > r.MaxDistance {
		return Target{}, false
	}
	return targetFor(board, draggedID, best), true
}

// known reports whether a candidate refers to something droppable on board.
func known(board domain.Board, draggedID string, candidate Candidate) bool {
	switch candidate.Kind {
	case KindCard:
		if candidate.ID == draggedID {
			return false
		}
		_, ok := board.Cards[candidate.ID]
		return ok
	case KindColumn:
		_, ok := board.Columns[candidate.ID]
		return ok
	default:
		return false
	}
}

// targetFor converts a winning candidate into post-removal coordinates.
func targetFor(board domain.Board, draggedID string, winner Candidate) Target {
	if winner.Kind == KindCard {
		card := board.Cards[winner.ID]
		idx := card.Position
		if dragged, ok := board.Cards[draggedID]; ok && dragged.ColumnID == card.ColumnID && dragged.Position < card.Position {
			idx--
		}
		return Target{ColumnID: card.ColumnID, Index: idx}
	}
	column := board.Columns[winner.ID]
	length := len(column.CardIDs)
	if dragged, ok := board.Cards[draggedID]; ok && dragged.ColumnID == column.ID {
		length--
	}
	return Target{ColumnID: column.ID, Index: length}
}
