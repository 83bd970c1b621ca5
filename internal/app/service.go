package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/kandrag/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	StateTemplates []StateTemplate
}

// StateTemplate describes one column seeded into an empty board.
type StateTemplate struct {
	ID       string
	Name     string
	Position int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the persistence collaborator: it loads committed snapshots for
// the engine and applies committed moves to storage.
type Service struct {
	repo           Repository
	idGen          IDGenerator
	clock          Clock
	stateTemplates []StateTemplate
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	templates := sanitizeStateTemplates(cfg.StateTemplates)
	if len(templates) == 0 {
		templates = defaultStateTemplates()
	}

	return &Service{
		repo:           repo,
		idGen:          idGen,
		clock:          clock,
		stateTemplates: templates,
	}
}

// EnsureDefaultColumns seeds the configured columns when storage holds none.
func (s *Service) EnsureDefaultColumns(ctx context.Context) error {
	columns, err := s.repo.ListColumns(ctx)
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		return nil
	}
	for idx, state := range s.stateTemplates {
		if err := s.repo.CreateColumn(ctx, ColumnRecord{
			ID:       state.ID,
			Title:    state.Name,
			Position: idx,
		}); err != nil {
			return err
		}
	}
	return nil
}

// LoadBoard reads a committed snapshot for the engine.
func (s *Service) LoadBoard(ctx context.Context) (domain.Board, error) {
	columns, err := s.repo.ListColumns(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	cards, err := s.repo.ListCards(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	return boardFromRecords(columns, cards)
}

// CreateCardInput holds input values for create card operations.
type CreateCardInput struct {
	ColumnID    string
	Title       string
	Description string
}

// CreateCard appends a new card to the end of a column.
func (s *Service) CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	id := strings.TrimSpace(s.idGen())
	if id == "" {
		return domain.Card{}, domain.ErrInvalidID
	}

	board, err := s.LoadBoard(ctx)
	if err != nil {
		return domain.Card{}, err
	}
	column, ok := board.Column(in.ColumnID)
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: column %q", ErrNotFound, in.ColumnID)
	}
	if in.Title == "" {
		in.Title = id
	}

	now := s.clock().UTC()
	record := CardRecord{
		ID:          id,
		ColumnID:    column.ID,
		Position:    column.Len(),
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCard(ctx, record); err != nil {
		return domain.Card{}, err
	}
	return domain.Card{
		ID:          record.ID,
		ColumnID:    record.ColumnID,
		Position:    record.Position,
		Title:       record.Title,
		Description: record.Description,
	}, nil
}

// PersistMove applies a committed move to storage. Drops back onto the origin
// are not recorded.
func (s *Service) PersistMove(ctx context.Context, ev domain.MoveCommitted) error {
	if !ev.Moved() {
		return nil
	}
	if strings.TrimSpace(ev.CardID) == "" {
		return domain.ErrInvalidID
	}
	return s.repo.ApplyMove(ctx, ev, s.clock().UTC())
}

// ListMoves returns the most recent ledger entries, newest first.
func (s *Service) ListMoves(ctx context.Context, limit int) ([]domain.MoveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListMoveEvents(ctx, limit)
}

// boardFromRecords orders storage rows and builds a board.
func boardFromRecords(columns []ColumnRecord, cards []CardRecord) (domain.Board, error) {
	columns = slices.Clone(columns)
	slices.SortStableFunc(columns, func(a, b ColumnRecord) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID, b.ID)
	})
	domainColumns := make([]domain.Column, 0, len(columns))
	for _, column := range columns {
		domainColumns = append(domainColumns, domain.Column{ID: column.ID, Title: column.Title})
	}
	domainCards := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		domainCards = append(domainCards, domain.Card{
			ID:          card.ID,
			ColumnID:    card.ColumnID,
			Position:    card.Position,
			Title:       card.Title,
			Description: card.Description,
		})
	}
	return domain.BoardFromPlacements(domainColumns, domainCards)
}

// defaultStateTemplates returns default state templates.
func defaultStateTemplates() []StateTemplate {
	return []StateTemplate{
		{ID: "todo", Name: "To Do", Position: 0},
		{ID: "progress", Name: "In Progress", Position: 1},
		{ID: "done", Name: "Done", Position: 2},
	}
}

// sanitizeStateTemplates handles sanitize state templates.
func sanitizeStateTemplates(in []StateTemplate) []StateTemplate {
	if len(in) == 0 {
		return nil
	}
	out := make([]StateTemplate, 0, len(in))
	seen := map[string]struct{}{}
	for idx, state := range in {
		state.Name = strings.TrimSpace(state.Name)
		state.ID = strings.TrimSpace(strings.ToLower(state.ID))
		if state.Name == "" {
			continue
		}
		if state.ID == "" {
			state.ID = normalizeStateID(state.Name)
		}
		if state.ID == "" {
			continue
		}
		if _, ok := seen[state.ID]; ok {
			continue
		}
		seen[state.ID] = struct{}{}
		if state.Position < 0 {
			state.Position = idx
		}
		out = append(out, state)
	}
	slices.SortStableFunc(out, func(a, b StateTemplate) int {
		return a.Position - b.Position
	})
	return out
}

// normalizeStateID derives a column id from a display name.
func normalizeStateID(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
