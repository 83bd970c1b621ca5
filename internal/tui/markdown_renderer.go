package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/kandrag/internal/domain"
)

const minDetailWrap = 24

// markdownRenderer renders card details and recreates the glamour renderer
// only when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// cardMarkdown builds the detail document for a card.
func cardMarkdown(card domain.Card) string {
	var b strings.Builder
	title := strings.TrimSpace(card.Title)
	if title == "" {
		title = card.ID
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "`%s` in **%s**, position %d\n", card.ID, card.ColumnID, card.Position)
	if desc := strings.TrimSpace(card.Description); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}

// renderCard renders a card's detail document wrapped to width.
func (r *markdownRenderer) renderCard(card domain.Card, width int) string {
	return r.render(cardMarkdown(card), width)
}

// render converts markdown into ANSI-styled terminal text. Renderer failures
// fall back to the raw markdown.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, minDetailWrap)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
