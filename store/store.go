// Package store defines the composite Store interface for all persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them, so a backend implements everything in one place.
package store

import (
	"context"

	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/run"
	"github.com/xraph/vercel/trigger"
)

// Store is the aggregate persistence interface.
type Store interface {
	trigger.Store
	event.Store
	run.Store
	dlq.Store

	// Migrate prepares the backend.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
