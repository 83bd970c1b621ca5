package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board and move APIs.
type AppServiceAdapter struct {
	service        *app.Service
	controllerOpts []app.ControllerOption
	now            func() time.Time

	// mu serializes gestures so concurrent requests commit in arrival order.
	mu sync.Mutex
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
// opts configure the controller each move runs through.
func NewAppServiceAdapter(service *app.Service, opts ...app.ControllerOption) *AppServiceAdapter {
	return &AppServiceAdapter{
		service:        service,
		controllerOpts: opts,
		now:            time.Now,
	}
}

// BoardView loads the committed board through app-level APIs.
func (a *AppServiceAdapter) BoardView(ctx context.Context) (BoardView, error) {
	if a == nil || a.service == nil {
		return BoardView{}, fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	board, err := a.service.LoadBoard(ctx)
	if err != nil {
		return BoardView{}, mapAppError("load board", err)
	}
	return mapBoardView(board, a.now().UTC()), nil
}

// MoveCard runs one headless gesture through app-level APIs.
func (a *AppServiceAdapter) MoveCard(ctx context.Context, in MoveRequest) (MoveResult, error) {
	if a == nil || a.service == nil {
		return MoveResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrMovesUnavailable)
	}
	req, err := normalizeMoveRequest(in)
	if err != nil {
		return MoveResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	ev, err := a.service.MoveCard(ctx, app.MoveCardInput{
		CardID:   req.CardID,
		ColumnID: req.ColumnID,
		Index:    req.Index,
	}, a.controllerOpts...)
	if err != nil {
		return MoveResult{}, mapAppError("move card", err)
	}
	return MoveResult{
		CardID:       ev.CardID,
		FromColumnID: ev.FromColumnID,
		FromIndex:    ev.FromIndex,
		ToColumnID:   ev.ToColumnID,
		ToIndex:      ev.ToIndex,
		Moved:        ev.Moved(),
	}, nil
}

// ListMoves lists ledger rows newest first.
func (a *AppServiceAdapter) ListMoves(ctx context.Context, limit int) ([]MoveEntry, error) {
	if a == nil || a.service == nil {
		return nil, fmt.Errorf("app service adapter is not configured: %w", ErrMovesUnavailable)
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	if limit == 0 {
		limit = DefaultMoveListLimit
	}
	records, err := a.service.ListMoves(ctx, limit)
	if err != nil {
		return nil, mapAppError("list moves", err)
	}
	out := make([]MoveEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, MoveEntry{
			ID:           rec.ID,
			CardID:       rec.Move.CardID,
			FromColumnID: rec.Move.FromColumnID,
			FromIndex:    rec.Move.FromIndex,
			ToColumnID:   rec.Move.ToColumnID,
			ToIndex:      rec.Move.ToIndex,
			OccurredAt:   rec.OccurredAt.UTC(),
		})
	}
	return out, nil
}

// normalizeMoveRequest trims ids and rejects incomplete requests.
func normalizeMoveRequest(in MoveRequest) (MoveRequest, error) {
	in.CardID = strings.TrimSpace(in.CardID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	if in.CardID == "" {
		return MoveRequest{}, fmt.Errorf("card_id is required: %w", ErrInvalidRequest)
	}
	if in.ColumnID == "" {
		return MoveRequest{}, fmt.Errorf("column_id is required: %w", ErrInvalidRequest)
	}
	if in.Index < 0 {
		return MoveRequest{}, fmt.Errorf("index must be >= 0: %w", ErrInvalidRequest)
	}
	return in, nil
}

// mapBoardView converts a domain board into its transport shape.
func mapBoardView(board domain.Board, capturedAt time.Time) BoardView {
	out := BoardView{
		CapturedAt: capturedAt,
		CardCount:  board.CardCount(),
		Columns:    make([]ColumnView, 0, len(board.ColumnIDs)),
	}
	for _, columnID := range board.ColumnIDs {
		column := board.Columns[columnID]
		view := ColumnView{
			ID:    column.ID,
			Title: column.Title,
			Cards: make([]CardView, 0, column.Len()),
		}
		for _, card := range board.CardsIn(columnID) {
			view.Cards = append(view.Cards, CardView{
				ID:          card.ID,
				Position:    card.Position,
				Title:       card.Title,
				Description: card.Description,
			})
		}
		out.Columns = append(out.Columns, view)
	}
	return out
}

// mapAppError maps app-layer errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrInvalidMove), errors.Is(err, domain.ErrInvalidID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
