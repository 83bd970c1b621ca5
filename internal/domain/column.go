package domain

import (
	"slices"
	"strings"
)

// Column is a named, ordered bucket of card ids.
type Column struct {
	ID      string
	Title   string
	CardIDs []string
}

// ColumnInput describes one column of an externally supplied ordered snapshot.
type ColumnInput struct {
	ID    string
	Title string
	Cards []CardInput
}

// Len returns the number of cards in the column.
func (c Column) Len() int {
	return len(c.CardIDs)
}

// IndexOf returns the list index of cardID, or -1.
func (c Column) IndexOf(cardID string) int {
	for idx, id := range c.CardIDs {
		if id == cardID {
			return idx
		}
	}
	return -1
}

// clone copies the column including its card list.
func (c Column) clone() Column {
	c.CardIDs = slices.Clone(c.CardIDs)
	return c
}

// normalizeColumnInput checks the id and trims the title.
func normalizeColumnInput(in ColumnInput) (ColumnInput, error) {
	if err := checkID("column", in.ID); err != nil {
		return ColumnInput{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = in.ID
	}
	return in, nil
}
