package tui

import (
	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/collision"
)

// KeyConfig holds configurable drag key overrides. Blank fields keep defaults.
type KeyConfig struct {
	Grab   string
	Drop   string
	Cancel string
	CopyID string
}

type Option func(*Model)

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithMaxSnapDistance limits how far, in cells, a drop target may be from the
// dragged card. Zero means unlimited.
func WithMaxSnapDistance(distance float64) Option {
	return func(m *Model) {
		if distance < 0 {
			distance = 0
		}
		m.controllerOpts = append(m.controllerOpts, app.WithResolver(collision.Resolver{MaxDistance: distance}))
	}
}

// WithStrictContracts makes engine contract violations panic.
func WithStrictContracts(strict bool) Option {
	return func(m *Model) {
		m.controllerOpts = append(m.controllerOpts, app.WithStrictContracts(strict))
	}
}

// WithLogger routes drag lifecycle records to logger.
func WithLogger(logger *charmLog.Logger) Option {
	return func(m *Model) {
		if logger == nil {
			return
		}
		m.logger = logger
		m.controllerOpts = append(m.controllerOpts, app.WithLogger(logger))
	}
}

// WithClipboard replaces the clipboard writer used to copy card ids.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
