// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/internal/preview"
	"github.com/jackzampolin/binder/internal/section"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Sections  *section.List
	Preview   *preview.Regenerator
	Flattener flatten.Flattener
	Config    *config.Manager
	Logger    *slog.Logger
	Home      *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// SectionsFrom extracts the section list from context.
func SectionsFrom(ctx context.Context) *section.List {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sections
	}
	return nil
}

// PreviewFrom extracts the preview regenerator from context.
func PreviewFrom(ctx context.Context) *preview.Regenerator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Preview
	}
	return nil
}

// FlattenerFrom extracts the flattening engine from context.
func FlattenerFrom(ctx context.Context) flatten.Flattener {
	if s := ServicesFrom(ctx); s != nil {
		return s.Flattener
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
