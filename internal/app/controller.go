package app

import (
	"errors"
	"io"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/kandrag/internal/collision"
	"github.com/evanschultz/kandrag/internal/domain"
	"github.com/evanschultz/kandrag/internal/drag"
	"github.com/evanschultz/kandrag/internal/partition"
)

// MoveHandler receives committed moves in commit order.
type MoveHandler func(domain.MoveCommitted)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger used for drag lifecycle records.
func WithLogger(logger *charmLog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResolver sets the collision resolver.
func WithResolver(resolver collision.Resolver) ControllerOption {
	return func(c *Controller) {
		c.resolver = resolver
	}
}

// WithStrictContracts makes contract violations (unknown ids, events invalid
// for the current gesture state) panic instead of returning an error.
func WithStrictContracts(strict bool) ControllerOption {
	return func(c *Controller) {
		c.strict = strict
	}
}

// subscription pairs a handler with its registration id.
type subscription struct {
	id      int
	handler MoveHandler
}

// Controller is the façade the rendering layer drives. It wires one
// partition to one drag session and fans committed moves out to subscribers.
type Controller struct {
	partition *partition.Partition
	session   *drag.Session
	resolver  collision.Resolver
	logger    *charmLog.Logger
	strict    bool

	subs   []subscription
	nextID int
}

// NewController builds a controller over an initial board snapshot.
func NewController(board domain.Board, opts ...ControllerOption) (*Controller, error) {
	p, err := partition.New(board)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		partition: p,
		logger:    charmLog.New(io.Discard),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.session = drag.NewSession(p, c.resolver)
	return c, nil
}

// CurrentView returns the preview board while dragging, else the committed board.
func (c *Controller) CurrentView() domain.Board {
	return c.session.View()
}

// Committed returns the committed board.
func (c *Controller) Committed() domain.Board {
	return c.partition.Snapshot()
}

// Dragging reports whether a gesture is active.
func (c *Controller) Dragging() bool {
	return c.session.State() == drag.StateActive
}

// DragOrigin returns the origin of the active gesture.
func (c *Controller) DragOrigin() (drag.Origin, bool) {
	return c.session.Active()
}

// DropTarget returns the currently resolved drop target.
func (c *Controller) DropTarget() (collision.Target, bool) {
	return c.session.Target()
}

// HandlePointerDown picks up cardID.
func (c *Controller) HandlePointerDown(cardID string) error {
	if err := c.session.StartDrag(cardID); err != nil {
		return c.contract(err)
	}
	origin, _ := c.session.Active()
	c.logger.Debug("drag started", "card_id", cardID, "column_id", origin.ColumnID, "index", origin.Index)
	return nil
}

// HandlePointerMove feeds the dragged rectangle and droppable candidates to
// the session. Motion while no gesture is active is ignored.
func (c *Controller) HandlePointerMove(dragged collision.Rect, candidates []collision.Candidate) error {
	if !c.Dragging() {
		return nil
	}
	if err := c.session.PointerMove(dragged, candidates); err != nil {
		return c.contract(err)
	}
	return nil
}

// HandleKeyboardMove targets columnID at index directly.
func (c *Controller) HandleKeyboardMove(columnID string, index int) error {
	if err := c.session.KeyboardMove(collision.Target{ColumnID: columnID, Index: index}); err != nil {
		return c.contract(err)
	}
	return nil
}

// HandlePointerUp drops the dragged card. When a target was resolved the move
// is committed and published; the returned bool reports whether that happened.
// Release while no gesture is active is ignored.
func (c *Controller) HandlePointerUp() (domain.MoveCommitted, bool, error) {
	if !c.Dragging() {
		return domain.MoveCommitted{}, false, nil
	}
	origin, _ := c.session.Active()
	ev, committed, err := c.session.Drop()
	if err != nil {
		return domain.MoveCommitted{}, false, c.contract(err)
	}
	if !committed {
		c.logger.Debug("drag dropped without target", "card_id", origin.CardID)
		return domain.MoveCommitted{}, false, nil
	}
	c.logger.Debug("move committed",
		"card_id", ev.CardID,
		"from_column_id", ev.FromColumnID,
		"from_index", ev.FromIndex,
		"to_column_id", ev.ToColumnID,
		"to_index", ev.ToIndex,
	)
	c.publish(ev)
	return ev, true, nil
}

// CancelGesture discards the active gesture. Committed state is untouched and
// nothing is published.
func (c *Controller) CancelGesture() {
	origin, ok := c.session.Active()
	if !ok {
		return
	}
	_ = c.session.Cancel()
	c.logger.Debug("drag canceled", "card_id", origin.CardID)
}

// Subscribe registers handler for committed moves and returns a function that
// removes it.
func (c *Controller) Subscribe(handler MoveHandler) func() {
	if handler == nil {
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, handler: handler})
	return func() {
		for idx, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:idx:idx], c.subs[idx+1:]...)
				return
			}
		}
	}
}

// Reset installs a fresh committed snapshot, abandoning any active gesture.
// Persistence collaborators call it to reconcile after a failed write.
func (c *Controller) Reset(board domain.Board) error {
	if err := board.Validate(); err != nil {
		return err
	}
	if c.Dragging() {
		c.logger.Debug("drag abandoned by reset")
	}
	c.session.Abort()
	if err := c.partition.Reset(board); err != nil {
		return err
	}
	c.logger.Debug("board reset", "columns", len(board.ColumnIDs), "cards", board.CardCount())
	return nil
}

func (c *Controller) publish(ev domain.MoveCommitted) {
	subs := append([]subscription(nil), c.subs...)
	for _, sub := range subs {
		sub.handler(ev)
	}
}

// contract applies the strict-contract policy to engine errors.
func (c *Controller) contract(err error) error {
	if c.strict && (errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState)) {
		panic(err)
	}
	return err
}
