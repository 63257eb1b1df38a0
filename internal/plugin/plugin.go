// Package plugin manages the observers that attach to conversation
// lifecycle events when the application starts.
package plugin

import (
	"context"

	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/logging"
)

// Plugin is an observer with a start and stop step.
type Plugin interface {
	// ID returns a unique identifier such as "audit".
	ID() string

	// Description is shown by the status command.
	Description() string

	// Init registers hook handlers and sets up resources.
	Init(ctx context.Context, api API) error

	// Close removes the plugin's handlers and releases resources.
	Close() error
}

// API is what a plugin receives at Init.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}
