package sqlite

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/domain"
	"github.com/evanschultz/kandrag/internal/partition"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "kandrag.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedBoard(t *testing.T, repo *Repository, columns map[string][]string, order ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for idx, columnID := range order {
		if err := repo.CreateColumn(ctx, app.ColumnRecord{ID: columnID, Title: columnID, Position: idx}); err != nil {
			t.Fatalf("CreateColumn(%q) error = %v", columnID, err)
		}
		for pos, cardID := range columns[columnID] {
			if err := repo.CreateCard(ctx, app.CardRecord{
				ID:        cardID,
				ColumnID:  columnID,
				Position:  pos,
				Title:     "Card " + cardID,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				t.Fatalf("CreateCard(%q) error = %v", cardID, err)
			}
		}
	}
}

func cardsByColumn(t *testing.T, repo *Repository) map[string][]string {
	t.Helper()
	cards, err := repo.ListCards(context.Background())
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	out := map[string][]string{}
	for _, card := range cards {
		if card.Position != len(out[card.ColumnID]) {
			t.Fatalf("card %q in %q has position %d, expected contiguous %d", card.ID, card.ColumnID, card.Position, len(out[card.ColumnID]))
		}
		out[card.ColumnID] = append(out[card.ColumnID], card.ID)
	}
	return out
}

func TestRepository_ColumnCardLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	seedBoard(t, repo, map[string][]string{"todo": {"t1", "t2"}}, "done", "todo")

	columns, err := repo.ListColumns(ctx)
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	if len(columns) != 2 || columns[0].ID != "done" || columns[1].ID != "todo" {
		t.Fatalf("unexpected columns %#v", columns)
	}

	card, err := repo.GetCard(ctx, "t2")
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if card.ColumnID != "todo" || card.Position != 1 || card.Title != "Card t2" {
		t.Fatalf("unexpected card %#v", card)
	}
	if card.CreatedAt.IsZero() {
		t.Fatal("expected created_at to round-trip")
	}

	if _, err := repo.GetCard(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.CreateCard(ctx, app.CardRecord{ID: "t9", ColumnID: "nowhere"}); err == nil {
		t.Fatal("expected foreign key error for unknown column")
	}
}

func TestRepository_ApplyMoveShiftsSiblings(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	seedBoard(t, repo, map[string][]string{
		"A": {"t1", "t2", "t3"},
		"B": {"u1", "u2"},
	}, "A", "B")

	at := time.Date(2026, 2, 21, 13, 0, 0, 0, time.UTC)
	if err := repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "t1", FromColumnID: "A", FromIndex: 0, ToColumnID: "B", ToIndex: 1}, at); err != nil {
		t.Fatalf("ApplyMove(cross) error = %v", err)
	}
	got := cardsByColumn(t, repo)
	if !slices.Equal(got["A"], []string{"t2", "t3"}) || !slices.Equal(got["B"], []string{"u1", "t1", "u2"}) {
		t.Fatalf("unexpected board after cross-column move %#v", got)
	}

	if err := repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "t3", FromColumnID: "A", FromIndex: 1, ToColumnID: "A", ToIndex: 0}, at.Add(time.Minute)); err != nil {
		t.Fatalf("ApplyMove(same) error = %v", err)
	}
	got = cardsByColumn(t, repo)
	if !slices.Equal(got["A"], []string{"t3", "t2"}) {
		t.Fatalf("unexpected board after same-column move %#v", got)
	}

	if err := repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "t2", FromColumnID: "A", FromIndex: 1, ToColumnID: "B", ToIndex: 99}, at.Add(2*time.Minute)); err != nil {
		t.Fatalf("ApplyMove(clamped) error = %v", err)
	}
	got = cardsByColumn(t, repo)
	if !slices.Equal(got["B"], []string{"u1", "t1", "u2", "t2"}) {
		t.Fatalf("expected clamped append, got %#v", got)
	}

	moves, err := repo.ListMoveEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListMoveEvents() error = %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(moves))
	}
	if moves[0].Move.CardID != "t2" || moves[0].Move.ToIndex != 3 {
		t.Fatalf("expected newest clamped move first, got %#v", moves[0])
	}
	if !moves[2].OccurredAt.Equal(at) {
		t.Fatalf("unexpected occurred_at %v", moves[2].OccurredAt)
	}

	limited, err := repo.ListMoveEvents(ctx, 1)
	if err != nil {
		t.Fatalf("ListMoveEvents(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestRepository_ApplyMoveNotFoundRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	seedBoard(t, repo, map[string][]string{"A": {"t1", "t2"}}, "A", "B")

	err := repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "ghost", FromColumnID: "A", ToColumnID: "B"}, time.Now())
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for card, got %v", err)
	}
	err = repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "t1", FromColumnID: "A", ToColumnID: "Z"}, time.Now())
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for column, got %v", err)
	}

	got := cardsByColumn(t, repo)
	if !slices.Equal(got["A"], []string{"t1", "t2"}) {
		t.Fatalf("expected failed moves to leave storage untouched, got %#v", got)
	}
	moves, err := repo.ListMoveEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListMoveEvents() error = %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected empty ledger, got %#v", moves)
	}
}

func TestRepository_ApplyMoveMatchesPartitionCommits(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	layout := map[string][]string{}
	order := []string{"A", "B", "C"}
	inputs := make([]domain.ColumnInput, 0, len(order))
	for _, columnID := range order {
		in := domain.ColumnInput{ID: columnID}
		for n := range 4 {
			cardID := columnID + strconv.Itoa(n)
			layout[columnID] = append(layout[columnID], cardID)
			in.Cards = append(in.Cards, domain.CardInput{ID: cardID, Title: "Card " + cardID})
		}
		inputs = append(inputs, in)
	}
	seedBoard(t, repo, layout, order...)

	board, err := domain.NewBoard(inputs)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	p, err := partition.New(board)
	if err != nil {
		t.Fatalf("partition.New() error = %v", err)
	}

	rng := rand.New(rand.NewPCG(3, 5))
	cardIDs := make([]string, 0, board.CardCount())
	for _, columnID := range order {
		cardIDs = append(cardIDs, layout[columnID]...)
	}
	for step := range 200 {
		cardID := cardIDs[rng.IntN(len(cardIDs))]
		target := order[rng.IntN(len(order))]
		index := rng.IntN(6)

		from, err := p.Locate(cardID)
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		next, err := p.Commit(cardID, target, index)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		landed := next.Cards[cardID]
		ev := domain.MoveCommitted{
			CardID:       cardID,
			FromColumnID: from.ColumnID,
			FromIndex:    from.Index,
			ToColumnID:   landed.ColumnID,
			ToIndex:      landed.Position,
		}
		if err := repo.ApplyMove(ctx, ev, time.Now()); err != nil {
			t.Fatalf("step %d ApplyMove() error = %v", step, err)
		}
	}

	stored := cardsByColumn(t, repo)
	committed := p.Snapshot()
	for _, columnID := range order {
		if !slices.Equal(stored[columnID], committed.Columns[columnID].CardIDs) {
			t.Fatalf("column %q stored %v, committed %v", columnID, stored[columnID], committed.Columns[columnID].CardIDs)
		}
	}
}

func TestRepository_ReplaceBoard(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	seedBoard(t, repo, map[string][]string{"A": {"t1"}}, "A")
	if err := repo.ApplyMove(ctx, domain.MoveCommitted{CardID: "t1", FromColumnID: "A", ToColumnID: "A"}, time.Now()); err != nil {
		t.Fatalf("ApplyMove() error = %v", err)
	}

	err := repo.ReplaceBoard(ctx,
		[]app.ColumnRecord{{ID: "todo", Title: "To Do", Position: 0}, {ID: "done", Title: "Done", Position: 1}},
		[]app.CardRecord{{ID: "x1", ColumnID: "done", Position: 0, Title: "X"}},
	)
	if err != nil {
		t.Fatalf("ReplaceBoard() error = %v", err)
	}

	columns, err := repo.ListColumns(ctx)
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	if len(columns) != 2 || columns[0].ID != "todo" {
		t.Fatalf("unexpected columns %#v", columns)
	}
	got := cardsByColumn(t, repo)
	if len(got) != 1 || !slices.Equal(got["done"], []string{"x1"}) {
		t.Fatalf("unexpected cards %#v", got)
	}
	moves, err := repo.ListMoveEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListMoveEvents() error = %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected ledger cleared, got %#v", moves)
	}

	err = repo.ReplaceBoard(ctx, nil, []app.CardRecord{{ID: "orphan", ColumnID: "gone"}})
	if err == nil {
		t.Fatal("expected orphan card to fail")
	}
	got = cardsByColumn(t, repo)
	if !slices.Equal(got["done"], []string{"x1"}) {
		t.Fatalf("expected failed replace to roll back, got %#v", got)
	}
}

func TestRepository_ServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	ids := []string{"c1", "c2"}
	svc := app.NewService(repo, func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}, nil, app.ServiceConfig{})

	if err := svc.EnsureDefaultColumns(ctx); err != nil {
		t.Fatalf("EnsureDefaultColumns() error = %v", err)
	}
	for range 2 {
		if _, err := svc.CreateCard(ctx, app.CreateCardInput{ColumnID: "todo", Title: "work"}); err != nil {
			t.Fatalf("CreateCard() error = %v", err)
		}
	}
	if err := svc.PersistMove(ctx, domain.MoveCommitted{CardID: "c2", FromColumnID: "todo", FromIndex: 1, ToColumnID: "done", ToIndex: 0}); err != nil {
		t.Fatalf("PersistMove() error = %v", err)
	}

	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if len(snap.Columns) != 3 || snap.Columns[2].ID != "done" || len(snap.Columns[2].Cards) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	other := openTestRepo(t)
	otherSvc := app.NewService(other, nil, nil, app.ServiceConfig{})
	if err := otherSvc.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	board, err := otherSvc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if !slices.Equal(board.Columns["todo"].CardIDs, []string{"c1"}) || !slices.Equal(board.Columns["done"].CardIDs, []string{"c2"}) {
		t.Fatalf("unexpected imported board %#v", board.Columns)
	}
}
