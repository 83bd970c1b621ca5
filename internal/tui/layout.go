package tui

import (
	"github.com/evanschultz/kandrag/internal/collision"
	"github.com/evanschultz/kandrag/internal/domain"
)

// Board geometry in terminal cells. Rendering and hit testing share these.
const (
	boardTop       = 2 // title line plus a blank line
	columnHeader   = 1
	cardHeight     = 3 // rounded border, one title row, border
	columnGap      = 2
	minColumnWidth = 18
	maxColumnWidth = 36
	footerHeight   = 2
)

// boardLayout holds screen rectangles for one rendering of a board.
type boardLayout struct {
	columnWidth int
	columnIDs   []string
	columns     map[string]collision.Rect
	cardIDs     []string
	cards       map[string]collision.Rect
}

// columnWidthFor splits the available width across n columns.
func columnWidthFor(width, n int) int {
	if n <= 0 {
		return minColumnWidth
	}
	w := (width - columnGap*(n-1)) / n
	return min(max(w, minColumnWidth), maxColumnWidth)
}

// computeLayout lays out board for a width x height terminal. A non-empty
// skipID leaves that card out and closes the gap behind it, which is the
// layout the resolver expects while the card is being dragged.
func computeLayout(board domain.Board, width, height int, skipID string) boardLayout {
	l := boardLayout{
		columnWidth: columnWidthFor(width, len(board.ColumnIDs)),
		columnIDs:   make([]string, 0, len(board.ColumnIDs)),
		columns:     make(map[string]collision.Rect, len(board.ColumnIDs)),
		cards:       make(map[string]collision.Rect, len(board.Cards)),
	}
	for ci, columnID := range board.ColumnIDs {
		x := float64(ci * (l.columnWidth + columnGap))
		row := 0
		for _, cardID := range board.Columns[columnID].CardIDs {
			if cardID == skipID {
				continue
			}
			l.cardIDs = append(l.cardIDs, cardID)
			l.cards[cardID] = collision.Rect{
				X:      x,
				Y:      float64(boardTop + columnHeader + row*cardHeight),
				Width:  float64(l.columnWidth),
				Height: cardHeight,
			}
			row++
		}
		// Columns reach at least one empty slot past their last card so an
		// append target always exists.
		h := max(height-boardTop-footerHeight, columnHeader+(row+1)*cardHeight)
		l.columnIDs = append(l.columnIDs, columnID)
		l.columns[columnID] = collision.Rect{
			X:      x,
			Y:      boardTop,
			Width:  float64(l.columnWidth),
			Height: float64(h),
		}
	}
	return l
}

// candidates returns droppables in a stable order: columns, then cards.
func (l boardLayout) candidates() []collision.Candidate {
	out := make([]collision.Candidate, 0, len(l.columnIDs)+len(l.cardIDs))
	for _, id := range l.columnIDs {
		out = append(out, collision.ColumnCandidate(id, l.columns[id]))
	}
	for _, id := range l.cardIDs {
		out = append(out, collision.CardCandidate(id, l.cards[id]))
	}
	return out
}

// cardAt returns the card under cell x, y.
func (l boardLayout) cardAt(x, y int) (string, collision.Rect, bool) {
	for _, id := range l.cardIDs {
		rect := l.cards[id]
		if cellIn(rect, x, y) {
			return id, rect, true
		}
	}
	return "", collision.Rect{}, false
}

// columnAt returns the column index under cell x, y.
func (l boardLayout) columnAt(x, y int) (int, bool) {
	for idx, id := range l.columnIDs {
		if cellIn(l.columns[id], x, y) {
			return idx, true
		}
	}
	return 0, false
}

// cellIn reports whether cell x, y lies in rect. Right and bottom edges are
// exclusive so stacked cards never share a row.
func cellIn(rect collision.Rect, x, y int) bool {
	fx, fy := float64(x), float64(y)
	return fx >= rect.X && fx < rect.X+rect.Width && fy >= rect.Y && fy < rect.Y+rect.Height
}
