// Package state keeps per-actor conversation sessions.
package state

import "context"

// Storage defines the persistence contract for conversation sessions.
type Storage interface {
	// GetState returns the session for userID or ErrStateNotFound.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState saves the provided session for userID.
	SetState(ctx context.Context, userID int64, state *UserState) error
	// ClearState removes the session for userID.
	ClearState(ctx context.Context, userID int64) error
	// GetAllStates lists every live session.
	GetAllStates(ctx context.Context) ([]*UserState, error)
}
