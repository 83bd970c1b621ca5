// Package drag drives one card gesture from pick-up to commit or cancel.
package drag

import (
	"fmt"

	"github.com/evanschultz/kandrag/internal/collision"
	"github.com/evanschultz/kandrag/internal/domain"
	"github.com/evanschultz/kandrag/internal/partition"
)

// State identifies the session phase.
type State int

// Session states.
const (
	StateIdle State = iota
	StateActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateError reports an operation attempted in the wrong session state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s while %s", domain.ErrInvalidState, e.Op, e.State)
}

func (e *StateError) Unwrap() error { return domain.ErrInvalidState }

// Origin is where the dragged card sat in the committed board at pick-up.
type Origin struct {
	CardID   string
	ColumnID string
	Index    int
}

// Session is the gesture state machine. Only one card may be dragged at a
// time. It is not safe for concurrent use; all events arrive on one thread.
type Session struct {
	partition *partition.Partition
	resolver  collision.Resolver

	state     State
	origin    Origin
	target    collision.Target
	hasTarget bool
	preview   *domain.Board
}

// NewSession builds an idle session over p.
func NewSession(p *partition.Partition, resolver collision.Resolver) *Session {
	return &Session{partition: p, resolver: resolver}
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Active returns the origin of the current drag.
func (s *Session) Active() (Origin, bool) {
	return s.origin, s.state == StateActive
}

// Target returns the last resolved drop target.
func (s *Session) Target() (collision.Target, bool) {
	return s.target, s.state == StateActive && s.hasTarget
}

// View returns the preview board while a target is resolved, otherwise the
// committed board.
func (s *Session) View() domain.Board {
	if s.state == StateActive && s.preview != nil {
		return s.preview.Clone()
	}
	return s.partition.Snapshot()
}

// StartDrag captures cardID's committed origin and enters Active.
func (s *Session) StartDrag(cardID string) error {
	if s.state != StateIdle {
		return &StateError{Op: "start drag", State: s.state}
	}
	at, err := s.partition.Locate(cardID)
	if err != nil {
		return err
	}
	s.state = StateActive
	s.origin = Origin{CardID: cardID, ColumnID: at.ColumnID, Index: at.Index}
	s.clearTarget()
	return nil
}

// PointerMove resolves the drop target for the dragged rectangle and updates
// the preview. With no target the preview reverts to the committed board.
func (s *Session) PointerMove(dragged collision.Rect, candidates []collision.Candidate) error {
	if s.state != StateActive {
		return &StateError{Op: "pointer move", State: s.state}
	}
	target, ok := s.resolver.Resolve(s.partition.Snapshot(), s.origin.CardID, dragged, candidates)
	if !ok {
		s.clearTarget()
		return nil
	}
	return s.previewTarget(target)
}

// KeyboardMove sets the drop target directly, as a keyboard sensor does.
func (s *Session) KeyboardMove(target collision.Target) error {
	if s.state != StateActive {
		return &StateError{Op: "keyboard move", State: s.state}
	}
	return s.previewTarget(target)
}

// Drop commits the last resolved target and returns the resulting event. With
// no target it behaves like Cancel and reports false.
func (s *Session) Drop() (domain.MoveCommitted, bool, error) {
	if s.state != StateActive {
		return domain.MoveCommitted{}, false, &StateError{Op: "drop", State: s.state}
	}
	origin, target, hasTarget := s.origin, s.target, s.hasTarget
	s.reset()
	if !hasTarget {
		return domain.MoveCommitted{}, false, nil
	}
	board, err := s.partition.Commit(origin.CardID, target.ColumnID, target.Index)
	if err != nil {
		return domain.MoveCommitted{}, false, err
	}
	landed := board.Cards[origin.CardID]
	return domain.MoveCommitted{
		CardID:       origin.CardID,
		FromColumnID: origin.ColumnID,
		FromIndex:    origin.Index,
		ToColumnID:   landed.ColumnID,
		ToIndex:      landed.Position,
	}, true, nil
}

// Cancel discards the preview and returns to Idle. Committed state is untouched.
func (s *Session) Cancel() error {
	if s.state != StateActive {
		return &StateError{Op: "cancel", State: s.state}
	}
	s.reset()
	return nil
}

// Abort returns to Idle from any state. Used when the committed board is replaced.
func (s *Session) Abort() {
	s.reset()
}

func (s *Session) previewTarget(target collision.Target) error {
	board, err := s.partition.Preview(s.origin.CardID, target.ColumnID, target.Index)
	if err != nil {
		return err
	}
	s.target = target
	s.hasTarget = true
	s.preview = &board
	return nil
}

func (s *Session) clearTarget() {
	s.target = collision.Target{}
	s.hasTarget = false
	s.preview = nil
}

func (s *Session) reset() {
	s.state = StateIdle
	s.origin = Origin{}
	s.clearTarget()
}
