package domain

import "errors"

var (
	ErrInvalidID    = errors.New("invalid id")
	ErrDuplicateID  = errors.New("duplicate id")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidBoard = errors.New("invalid board")
)
