package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/kandrag/internal/domain"
)

// MoveCardInput names a card and the slot it should land in. Index counts
// positions with the card already removed and is clamped to the column end.
type MoveCardInput struct {
	CardID   string
	ColumnID string
	Index    int
}

// MoveCard performs one keyboard gesture against the stored board and
// persists the committed move through a controller subscription. A card
// dropped back onto its origin yields an event with Moved() == false.
func (s *Service) MoveCard(ctx context.Context, in MoveCardInput, opts ...ControllerOption) (domain.MoveCommitted, error) {
	in.CardID = strings.TrimSpace(in.CardID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	if in.Index < 0 {
		return domain.MoveCommitted{}, fmt.Errorf("%w: index must be >= 0, got %d", ErrInvalidMove, in.Index)
	}

	board, err := s.LoadBoard(ctx)
	if err != nil {
		return domain.MoveCommitted{}, fmt.Errorf("load board: %w", err)
	}
	// Unknown ids are user input here, not contract violations, so they are
	// rejected before a strict controller sees them.
	if _, ok := board.Cards[in.CardID]; !ok {
		return domain.MoveCommitted{}, fmt.Errorf("%w: card %q", ErrNotFound, in.CardID)
	}
	if _, ok := board.Column(in.ColumnID); !ok {
		return domain.MoveCommitted{}, fmt.Errorf("%w: column %q", ErrNotFound, in.ColumnID)
	}

	ctrl, err := NewController(board, opts...)
	if err != nil {
		return domain.MoveCommitted{}, err
	}
	var persistErr error
	unsubscribe := ctrl.Subscribe(func(ev domain.MoveCommitted) {
		persistErr = s.PersistMove(ctx, ev)
	})
	defer unsubscribe()

	if err := ctrl.HandlePointerDown(in.CardID); err != nil {
		return domain.MoveCommitted{}, err
	}
	if err := ctrl.HandleKeyboardMove(in.ColumnID, in.Index); err != nil {
		ctrl.CancelGesture()
		return domain.MoveCommitted{}, err
	}
	ev, committed, err := ctrl.HandlePointerUp()
	if err != nil {
		return domain.MoveCommitted{}, err
	}
	if !committed {
		return domain.MoveCommitted{}, errors.Join(ErrInvalidMove, errors.New("move was not committed"))
	}
	if persistErr != nil {
		return domain.MoveCommitted{}, fmt.Errorf("persist move: %w", persistErr)
	}
	return ev, nil
}
