package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/collision"
	"github.com/evanschultz/kandrag/internal/domain"
)

// Service represents service data used by this package.
type Service interface {
	LoadBoard(context.Context) (domain.Board, error)
	PersistMove(context.Context, domain.MoveCommitted) error
}

// boardLoadedMsg carries a freshly loaded board.
type boardLoadedMsg struct {
	board domain.Board
	err   error
}

// movePersistedMsg reports the outcome of one persistence write.
type movePersistedMsg struct {
	move domain.MoveCommitted
	err  error
}

// actionMsg reports the outcome of a side effect such as a clipboard copy.
type actionMsg struct {
	status string
	err    error
}

// pointerGrab tracks an in-progress mouse drag.
type pointerGrab struct {
	active  bool
	moved   bool
	offsetX float64
	offsetY float64
	width   float64
	height  float64
}

// moveOutbox queues committed moves and persists them one at a time so the
// store sees them in commit order.
type moveOutbox struct {
	pending  []domain.MoveCommitted
	inflight bool
}

// push queues a committed move. It is the controller subscription.
func (o *moveOutbox) push(ev domain.MoveCommitted) {
	o.pending = append(o.pending, ev)
}

// next pops the oldest queued move when nothing is in flight.
func (o *moveOutbox) next() (domain.MoveCommitted, bool) {
	if o.inflight || len(o.pending) == 0 {
		return domain.MoveCommitted{}, false
	}
	ev := o.pending[0]
	o.pending = o.pending[1:]
	o.inflight = true
	return ev, true
}

// done marks the in-flight write finished.
func (o *moveOutbox) done() {
	o.inflight = false
}

// discard drops queued moves after a failed write.
func (o *moveOutbox) discard() int {
	n := len(o.pending)
	o.pending = nil
	return n
}

// busy reports whether writes are queued or in flight.
func (o *moveOutbox) busy() bool {
	return o.inflight || len(o.pending) > 0
}

// Model represents model data used by this package.
type Model struct {
	svc  Service
	ctrl *app.Controller

	controllerOpts []app.ControllerOption
	logger         *charmLog.Logger
	copyText       func(string) error
	outbox         *moveOutbox
	markdown       *markdownRenderer

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	focusColumn int
	focusRow    int
	showDetails bool
	pointer     pointerGrab
	// reloading blocks new gestures until a fresh board from storage is installed.
	reloading bool
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		logger:   charmLog.New(io.Discard),
		copyText: clipboard.WriteAll,
		outbox:   &moveOutbox{},
		markdown: &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadBoard
}

// loadBoard loads the board from the service.
func (m Model) loadBoard() tea.Msg {
	board, err := m.svc.LoadBoard(context.Background())
	return boardLoadedMsg{board: board, err: err}
}

// persistMove writes one committed move.
func (m Model) persistMove(ev domain.MoveCommitted) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return movePersistedMsg{move: ev, err: svc.PersistMove(context.Background(), ev)}
	}
}

// copyCardID copies a card id to the system clipboard.
func (m Model) copyCardID(id string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		if err := write(id); err != nil {
			return actionMsg{err: fmt.Errorf("copy card id: %w", err)}
		}
		return actionMsg{status: "copied " + id}
	}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		return m.applyLoadedBoard(msg)

	case movePersistedMsg:
		m.outbox.done()
		if msg.err != nil {
			dropped := m.outbox.discard()
			m.logger.Warn("persist move failed; reloading", "card_id", msg.move.CardID, "dropped", dropped, "err", msg.err)
			m.status = "save failed: " + msg.err.Error() + " (reloading)"
			m.reloading = true
			return m, m.loadBoard
		}
		if msg.move.Moved() {
			m.status = fmt.Sprintf("saved %s to %s[%d]", msg.move.CardID, msg.move.ToColumnID, msg.move.ToIndex)
		}
		return m, m.flushMoves()

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// applyLoadedBoard installs a loaded board, creating the controller on first load.
func (m Model) applyLoadedBoard(msg boardLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.ctrl == nil {
			m.err = msg.err
			return m, nil
		}
		m.status = "reload failed: " + msg.err.Error() + " (press " + m.keys.reload.Help().Key + " to retry)"
		return m, nil
	}
	if m.ctrl == nil {
		ctrl, err := app.NewController(msg.board, m.controllerOpts...)
		if err != nil {
			m.err = err
			return m, nil
		}
		ctrl.Subscribe(m.outbox.push)
		m.ctrl = ctrl
	} else if err := m.ctrl.Reset(msg.board); err != nil {
		m.status = "reload failed: " + err.Error()
		return m, nil
	}
	m.reloading = false
	m.err = nil
	m.ready = true
	m.pointer = pointerGrab{}
	m.clampFocus()
	if m.status == "loading..." || m.status == "reloading..." {
		m.status = "ready"
	}
	return m, nil
}

// flushMoves starts persisting the next queued move.
func (m Model) flushMoves() tea.Cmd {
	ev, ok := m.outbox.next()
	if !ok {
		return nil
	}
	return m.persistMove(ev)
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.err != nil || !m.ready {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.reload):
			m.err = nil
			m.status = "loading..."
			return m, m.loadBoard
		}
		return m, nil
	}
	if m.ctrl.Dragging() {
		return m.handleDragKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		if m.outbox.busy() {
			m.status = "saving, try again shortly"
			return m, nil
		}
		m.status = "reloading..."
		m.reloading = true
		return m, m.loadBoard
	case key.Matches(msg, m.keys.moveLeft):
		m.moveFocusColumn(-1)
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.moveFocusColumn(1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.focusRow--
		m.clampFocus()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.focusRow++
		m.clampFocus()
		return m, nil
	case key.Matches(msg, m.keys.grab):
		return m.grabFocused()
	case key.Matches(msg, m.keys.copyID):
		card, ok := m.focusedCard()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		return m, m.copyCardID(card.ID)
	case key.Matches(msg, m.keys.details):
		m.showDetails = !m.showDetails
		return m, nil
	}
	return m, nil
}

// handleDragKey handles key presses while a card is lifted.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.ctrl.CancelGesture()
		m.pointer = pointerGrab{}
		m.status = "drag canceled"
		return m, nil
	case key.Matches(msg, m.keys.drop):
		return m.finishDrag()
	case key.Matches(msg, m.keys.quit):
		m.ctrl.CancelGesture()
		return m, tea.Quit
	case key.Matches(msg, m.keys.moveLeft):
		return m.shiftTarget(-1, 0)
	case key.Matches(msg, m.keys.moveRight):
		return m.shiftTarget(1, 0)
	case key.Matches(msg, m.keys.moveUp):
		return m.shiftTarget(0, -1)
	case key.Matches(msg, m.keys.moveDown):
		return m.shiftTarget(0, 1)
	}
	return m, nil
}

// grabFocused lifts the focused card and targets its own slot.
func (m Model) grabFocused() (tea.Model, tea.Cmd) {
	if m.reloading {
		m.status = "reloading, try again shortly"
		return m, nil
	}
	card, ok := m.focusedCard()
	if !ok {
		m.status = "no card selected"
		return m, nil
	}
	if err := m.ctrl.HandlePointerDown(card.ID); err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	if err := m.ctrl.HandleKeyboardMove(card.ColumnID, card.Position); err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	m.status = "moving " + card.ID + ": arrows choose a slot, " + m.keys.drop.Help().Key + " drops, " + m.keys.cancel.Help().Key + " cancels"
	return m, nil
}

// shiftTarget moves the keyboard drop target by whole columns or slots.
func (m Model) shiftTarget(dColumn, dIndex int) (tea.Model, tea.Cmd) {
	origin, ok := m.ctrl.DragOrigin()
	if !ok {
		return m, nil
	}
	target, ok := m.ctrl.DropTarget()
	if !ok {
		target = collision.Target{ColumnID: origin.ColumnID, Index: origin.Index}
	}
	committed := m.ctrl.Committed()
	columnIdx := indexOf(committed.ColumnIDs, target.ColumnID)
	if columnIdx < 0 {
		columnIdx = indexOf(committed.ColumnIDs, origin.ColumnID)
	}
	columnIdx = clamp(columnIdx+dColumn, 0, len(committed.ColumnIDs)-1)
	columnID := committed.ColumnIDs[columnIdx]
	index := clamp(target.Index+dIndex, 0, slotsIn(committed, columnID, origin.CardID))

	if err := m.ctrl.HandleKeyboardMove(columnID, index); err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	m.status = m.dragStatus()
	return m, nil
}

// finishDrag drops the lifted card and starts persistence for any commit.
func (m Model) finishDrag() (tea.Model, tea.Cmd) {
	moved := m.pointer.moved
	wasPointer := m.pointer.active
	origin, _ := m.ctrl.DragOrigin()
	m.pointer = pointerGrab{}

	ev, committed, err := m.ctrl.HandlePointerUp()
	if err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	if !committed {
		if wasPointer && !moved {
			m.status = "selected " + origin.CardID
		} else {
			m.status = "drop canceled: no target"
		}
		return m, nil
	}
	m.focusOn(ev.ToColumnID, ev.ToIndex)
	if ev.Moved() {
		m.status = fmt.Sprintf("moved %s to %s[%d]", ev.CardID, ev.ToColumnID, ev.ToIndex)
	} else {
		m.status = ev.CardID + " unchanged"
	}
	return m, m.flushMoves()
}

// handleMouseClick picks up the card under the pointer.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseLeft || m.ctrl == nil || !m.ready || m.ctrl.Dragging() {
		return m, nil
	}
	if m.reloading {
		m.status = "reloading, try again shortly"
		return m, nil
	}
	layout := computeLayout(m.ctrl.CurrentView(), m.width, m.height, "")
	cardID, rect, ok := layout.cardAt(msg.X, msg.Y)
	if !ok {
		if idx, ok := layout.columnAt(msg.X, msg.Y); ok {
			m.focusColumn = idx
			m.clampFocus()
		}
		return m, nil
	}
	if err := m.ctrl.HandlePointerDown(cardID); err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	m.pointer = pointerGrab{
		active:  true,
		offsetX: float64(msg.X) - rect.X,
		offsetY: float64(msg.Y) - rect.Y,
		width:   rect.Width,
		height:  rect.Height,
	}
	card := m.ctrl.Committed().Cards[cardID]
	m.focusOn(card.ColumnID, card.Position)
	return m, nil
}

// handleMouseMotion drags the lifted card's rectangle with the pointer.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if !m.pointer.active || m.ctrl == nil {
		return m, nil
	}
	origin, ok := m.ctrl.DragOrigin()
	if !ok {
		m.pointer = pointerGrab{}
		return m, nil
	}
	m.pointer.moved = true
	layout := computeLayout(m.ctrl.Committed(), m.width, m.height, origin.CardID)
	dragged := collision.Rect{
		X:      float64(msg.X) - m.pointer.offsetX,
		Y:      float64(msg.Y) - m.pointer.offsetY,
		Width:  m.pointer.width,
		Height: m.pointer.height,
	}
	candidates := layout.candidates()
	if _, ok := layout.columnAt(msg.X, msg.Y); !ok {
		// Off the board nothing is droppable and the preview reverts.
		candidates = nil
	}
	if err := m.ctrl.HandlePointerMove(dragged, candidates); err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	m.status = m.dragStatus()
	return m, nil
}

// handleMouseRelease drops a mouse drag.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if !m.pointer.active || m.ctrl == nil {
		return m, nil
	}
	return m.finishDrag()
}

// dragStatus describes the current drop target.
func (m Model) dragStatus() string {
	origin, ok := m.ctrl.DragOrigin()
	if !ok {
		return ""
	}
	target, ok := m.ctrl.DropTarget()
	if !ok {
		return "dragging " + origin.CardID + " (no target)"
	}
	return fmt.Sprintf("dragging %s to %s[%d]", origin.CardID, target.ColumnID, target.Index)
}

// focusedCard returns the card under the focus cursor in the current view.
func (m Model) focusedCard() (domain.Card, bool) {
	if m.ctrl == nil {
		return domain.Card{}, false
	}
	board := m.ctrl.CurrentView()
	if m.focusColumn < 0 || m.focusColumn >= len(board.ColumnIDs) {
		return domain.Card{}, false
	}
	ids := board.Columns[board.ColumnIDs[m.focusColumn]].CardIDs
	if m.focusRow < 0 || m.focusRow >= len(ids) {
		return domain.Card{}, false
	}
	return board.Cards[ids[m.focusRow]], true
}

// moveFocusColumn moves focus across columns keeping the row when possible.
func (m *Model) moveFocusColumn(delta int) {
	m.focusColumn += delta
	m.clampFocus()
}

// focusOn points focus at a placement.
func (m *Model) focusOn(columnID string, index int) {
	if m.ctrl == nil {
		return
	}
	if idx := indexOf(m.ctrl.CurrentView().ColumnIDs, columnID); idx >= 0 {
		m.focusColumn = idx
		m.focusRow = index
	}
	m.clampFocus()
}

// clampFocus clamps focus to the current view.
func (m *Model) clampFocus() {
	if m.ctrl == nil {
		m.focusColumn, m.focusRow = 0, 0
		return
	}
	board := m.ctrl.CurrentView()
	m.focusColumn = clamp(m.focusColumn, 0, len(board.ColumnIDs)-1)
	if len(board.ColumnIDs) == 0 {
		m.focusRow = 0
		return
	}
	n := board.Columns[board.ColumnIDs[m.focusColumn]].Len()
	m.focusRow = clamp(m.focusRow, 0, n-1)
}

// View handles view.
func (m Model) View() tea.View {
	var content string
	switch {
	case m.err != nil:
		content = "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		content = "loading..."
	default:
		content = m.renderScreen()
	}
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderScreen renders the board, detail pane, status and help.
func (m Model) renderScreen() string {
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{m.renderBoard()}
	if m.showDetails {
		if card, ok := m.focusedCard(); ok {
			detail := m.markdown.renderCard(card, max(0, m.width-4))
			sections = append(sections, lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(dim).
				Padding(0, 1).
				Render(detail))
		}
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	footer := statusStyle.Render(m.status) + "\n" +
		lipgloss.NewStyle().Foreground(muted).Padding(0, 1).Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(footer)))
	}
	return content + "\n" + footer
}

// renderBoard renders the title line and columns. Column and card placement
// matches computeLayout so mouse hit testing lines up with what is drawn.
func (m Model) renderBoard() string {
	accent := lipgloss.Color("62")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	headerStyle := lipgloss.NewStyle().Bold(true)

	board := m.ctrl.CurrentView()
	draggedID := ""
	if origin, ok := m.ctrl.DragOrigin(); ok {
		draggedID = origin.CardID
	}
	focused, hasFocus := m.focusedCard()
	colWidth := columnWidthFor(m.width, len(board.ColumnIDs))
	inner := max(1, colWidth-4)

	title := titleStyle.Render("kandrag") + fmt.Sprintf("  %d cards", board.CardCount())
	if len(board.ColumnIDs) == 0 {
		return title + "\n\nNo columns configured."
	}

	blocks := make([]string, 0, len(board.ColumnIDs)*2)
	for idx, columnID := range board.ColumnIDs {
		column := board.Columns[columnID]
		lines := []string{headerStyle.Width(colWidth).Render(truncate(fmt.Sprintf("%s (%d)", column.Title, column.Len()), colWidth))}
		for _, card := range board.CardsIn(columnID) {
			style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dim).Padding(0, 1)
			label := card.Title
			switch {
			case card.ID == draggedID:
				style = style.Border(lipgloss.DoubleBorder()).BorderForeground(accent).Foreground(accent)
			case hasFocus && card.ID == focused.ID:
				style = style.BorderForeground(accent)
			}
			if label == "" {
				label = card.ID
			}
			label = truncate(label, inner)
			label += strings.Repeat(" ", max(0, inner-lipgloss.Width(label)))
			lines = append(lines, style.Render(label))
		}
		if idx > 0 {
			blocks = append(blocks, strings.Repeat(" ", columnGap))
		}
		blocks = append(blocks, lipgloss.JoinVertical(lipgloss.Left, lines...))
	}
	return title + "\n\n" + lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

// slotsIn returns the highest insert index for columnID once draggedID is
// lifted out of the board.
func slotsIn(board domain.Board, columnID, draggedID string) int {
	column, ok := board.Columns[columnID]
	if !ok {
		return 0
	}
	n := column.Len()
	if column.IndexOf(draggedID) >= 0 {
		n--
	}
	return n
}

// indexOf returns the index of id in ids, or -1.
func indexOf(ids []string, id string) int {
	for idx, candidate := range ids {
		if candidate == id {
			return idx
		}
	}
	return -1
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
