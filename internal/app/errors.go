package app

import (
	"errors"

	"github.com/evanschultz/kandrag/internal/domain"
)

// ErrNotFound is returned by repositories for missing rows. It matches domain.ErrNotFound.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")
	ErrInvalidMove         = errors.New("invalid move")
)
