package domain

import (
	"fmt"
	"strings"
)

// Card is a single draggable work item. Position is always the card's index
// in its column's list; it is never stored independently of list order.
type Card struct {
	ID          string
	ColumnID    string
	Position    int
	Title       string
	Description string
}

// CardInput holds the display fields of a card supplied by a snapshot.
type CardInput struct {
	ID          string
	Title       string
	Description string
}

// Placement identifies where a card sits.
type Placement struct {
	ColumnID string
	Index    int
}

// PlacementChange describes one card whose column or position differs between two boards.
type PlacementChange struct {
	CardID string
	From   Placement
	To     Placement
}

func normalizeCardInput(in CardInput) (CardInput, error) {
	if err := checkID("card", in.ID); err != nil {
		return CardInput{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	return in, nil
}

// checkID rejects empty ids and ids with surrounding whitespace. Ids are
// echoed back in MoveCommitted events, so they are never rewritten.
func checkID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidID, kind)
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("%w: %s id %q has surrounding whitespace", ErrInvalidID, kind, id)
	}
	return nil
}
