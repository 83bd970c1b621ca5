package app

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/kandrag/internal/domain"
)

type fakeRepo struct {
	columns  map[string]ColumnRecord
	cards    map[string]CardRecord
	moves    []domain.MoveRecord
	listErr  error
	applyErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		columns: map[string]ColumnRecord{},
		cards:   map[string]CardRecord{},
	}
}

func (f *fakeRepo) ListColumns(context.Context) ([]ColumnRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ColumnRecord, 0, len(f.columns))
	for _, c := range f.columns {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) CreateColumn(_ context.Context, c ColumnRecord) error {
	f.columns[c.ID] = c
	return nil
}

func (f *fakeRepo) ListCards(context.Context) ([]CardRecord, error) {
	out := make([]CardRecord, 0, len(f.cards))
	for _, c := range f.cards {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) GetCard(_ context.Context, id string) (CardRecord, error) {
	c, ok := f.cards[id]
	if !ok {
		return CardRecord{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) CreateCard(_ context.Context, c CardRecord) error {
	f.cards[c.ID] = c
	return nil
}

func (f *fakeRepo) ApplyMove(_ context.Context, ev domain.MoveCommitted, at time.Time) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	card, ok := f.cards[ev.CardID]
	if !ok {
		return ErrNotFound
	}
	for id, c := range f.cards {
		if id != ev.CardID && c.ColumnID == ev.FromColumnID && c.Position > ev.FromIndex {
			c.Position--
			f.cards[id] = c
		}
	}
	for id, c := range f.cards {
		if id != ev.CardID && c.ColumnID == ev.ToColumnID && c.Position >= ev.ToIndex {
			c.Position++
			f.cards[id] = c
		}
	}
	card.ColumnID = ev.ToColumnID
	card.Position = ev.ToIndex
	card.UpdatedAt = at
	f.cards[card.ID] = card
	f.moves = append(f.moves, domain.MoveRecord{ID: int64(len(f.moves) + 1), Move: ev, OccurredAt: at})
	return nil
}

func (f *fakeRepo) ListMoveEvents(_ context.Context, limit int) ([]domain.MoveRecord, error) {
	out := slices.Clone(f.moves)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ReplaceBoard(_ context.Context, columns []ColumnRecord, cards []CardRecord) error {
	f.columns = map[string]ColumnRecord{}
	f.cards = map[string]CardRecord{}
	f.moves = nil
	for _, c := range columns {
		f.columns[c.ID] = c
	}
	for _, c := range cards {
		f.cards[c.ID] = c
	}
	return nil
}

func sequenceIDs(ids ...string) IDGenerator {
	next := 0
	return func() string {
		if next >= len(ids) {
			return ""
		}
		id := ids[next]
		next++
		return id
	}
}

func TestEnsureDefaultColumns(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	if err := svc.EnsureDefaultColumns(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}
	board, err := svc.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	want := []string{"todo", "progress", "done"}
	if !slices.Equal(board.ColumnIDs, want) {
		t.Fatalf("expected columns %v, got %v", want, board.ColumnIDs)
	}
	if got := board.Columns["progress"].Title; got != "In Progress" {
		t.Fatalf("expected seeded title, got %q", got)
	}

	repo.columns["todo"] = ColumnRecord{ID: "todo", Title: "Renamed", Position: 0}
	if err := svc.EnsureDefaultColumns(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultColumns(second) error = %v", err)
	}
	if len(repo.columns) != 3 || repo.columns["todo"].Title != "Renamed" {
		t.Fatalf("expected existing columns untouched, got %#v", repo.columns)
	}
}

func TestEnsureDefaultColumnsUsesConfiguredStates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{StateTemplates: []StateTemplate{
		{Name: "Review Queue", Position: 1},
		{ID: "Backlog", Name: "Backlog", Position: 0},
		{ID: "backlog", Name: "Duplicate", Position: 2},
		{ID: "blank", Name: "  ", Position: 3},
	}})

	if err := svc.EnsureDefaultColumns(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}
	board, err := svc.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	want := []string{"backlog", "review-queue"}
	if !slices.Equal(board.ColumnIDs, want) {
		t.Fatalf("expected columns %v, got %v", want, board.ColumnIDs)
	}
}

func TestEnsureDefaultColumnsErrorPropagation(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("boom")
	svc := NewService(repo, nil, nil, ServiceConfig{})

	if err := svc.EnsureDefaultColumns(context.Background()); !errors.Is(err, repo.listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
	if _, err := svc.LoadBoard(context.Background()); !errors.Is(err, repo.listErr) {
		t.Fatalf("expected list error from LoadBoard, got %v", err)
	}
}

func TestCreateCardAppendsToColumn(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	svc := NewService(repo, sequenceIDs("c1", "c2"), func() time.Time { return now }, ServiceConfig{})
	if err := svc.EnsureDefaultColumns(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}

	first, err := svc.CreateCard(context.Background(), CreateCardInput{ColumnID: "todo", Title: " Write docs ", Description: "# Notes"})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	if first.ID != "c1" || first.Position != 0 || first.Title != "Write docs" {
		t.Fatalf("unexpected first card %#v", first)
	}
	second, err := svc.CreateCard(context.Background(), CreateCardInput{ColumnID: "todo"})
	if err != nil {
		t.Fatalf("CreateCard(second) error = %v", err)
	}
	if second.Position != 1 || second.Title != "c2" {
		t.Fatalf("unexpected second card %#v", second)
	}
	if got := repo.cards["c1"].CreatedAt; !got.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got)
	}

	board, err := svc.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if !slices.Equal(board.Columns["todo"].CardIDs, []string{"c1", "c2"}) {
		t.Fatalf("unexpected todo cards %v", board.Columns["todo"].CardIDs)
	}
	if board.Cards["c1"].Description != "# Notes" {
		t.Fatalf("expected description to load, got %q", board.Cards["c1"].Description)
	}
}

func TestCreateCardValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, sequenceIDs("c1"), nil, ServiceConfig{})
	if err := svc.EnsureDefaultColumns(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}

	if _, err := svc.CreateCard(context.Background(), CreateCardInput{ColumnID: "missing", Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.CreateCard(context.Background(), CreateCardInput{ColumnID: "todo", Title: "x"}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID once ids run out, got %v", err)
	}
}

func TestPersistMoveRoundTripsThroughLoadBoard(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	svc := NewService(repo, sequenceIDs("t1", "t2", "t3"), func() time.Time { return now }, ServiceConfig{})
	ctx := context.Background()
	if err := svc.EnsureDefaultColumns(ctx); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}
	for range 3 {
		if _, err := svc.CreateCard(ctx, CreateCardInput{ColumnID: "todo"}); err != nil {
			t.Fatalf("CreateCard() error = %v", err)
		}
	}

	board, err := svc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	ctrl, err := NewController(board)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	var persistErr error
	ctrl.Subscribe(func(ev domain.MoveCommitted) {
		persistErr = errors.Join(persistErr, svc.PersistMove(ctx, ev))
	})

	gestures := []struct {
		card   string
		column string
		index  int
	}{
		{card: "t1", column: "done", index: 0},
		{card: "t3", column: "todo", index: 0},
		{card: "t2", column: "done", index: 0},
		{card: "t3", column: "todo", index: 0},
	}
	for _, g := range gestures {
		if err := ctrl.HandlePointerDown(g.card); err != nil {
			t.Fatalf("HandlePointerDown(%q) error = %v", g.card, err)
		}
		if err := ctrl.HandleKeyboardMove(g.column, g.index); err != nil {
			t.Fatalf("HandleKeyboardMove() error = %v", err)
		}
		if _, _, err := ctrl.HandlePointerUp(); err != nil {
			t.Fatalf("HandlePointerUp() error = %v", err)
		}
	}
	if persistErr != nil {
		t.Fatalf("PersistMove() error = %v", persistErr)
	}

	stored, err := svc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard(after) error = %v", err)
	}
	committed := ctrl.Committed()
	for _, columnID := range committed.ColumnIDs {
		if !slices.Equal(stored.Columns[columnID].CardIDs, committed.Columns[columnID].CardIDs) {
			t.Fatalf("column %q stored %v, committed %v", columnID, stored.Columns[columnID].CardIDs, committed.Columns[columnID].CardIDs)
		}
	}

	moves, err := svc.ListMoves(ctx, 0)
	if err != nil {
		t.Fatalf("ListMoves() error = %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected the no-op drop to be skipped, got %d moves", len(moves))
	}
	if moves[0].Move.CardID != "t2" {
		t.Fatalf("expected newest move first, got %#v", moves[0])
	}
}

func TestPersistMoveErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.applyErr = errors.New("disk full")
	svc := NewService(repo, nil, nil, ServiceConfig{})

	ev := domain.MoveCommitted{CardID: "t1", FromColumnID: "todo", ToColumnID: "done"}
	if err := svc.PersistMove(context.Background(), ev); !errors.Is(err, repo.applyErr) {
		t.Fatalf("expected apply error, got %v", err)
	}
	if err := svc.PersistMove(context.Background(), domain.MoveCommitted{FromColumnID: "a", ToColumnID: "b"}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	noop := domain.MoveCommitted{CardID: "t1", FromColumnID: "todo", ToColumnID: "todo"}
	if err := svc.PersistMove(context.Background(), noop); err != nil {
		t.Fatalf("expected no-op move to skip storage, got %v", err)
	}
}
