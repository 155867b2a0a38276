package store

import (
	"context"
	"time"
)

// noopStore is the discard-everything store selected when DATABASE_URL is
// unset. Signups appear to succeed but nothing persists, so logins always
// report not-found.
type noopStore struct{}

// NewNoop returns the no-op store.
func NewNoop() Store { return noopStore{} }

func (noopStore) FindUser(context.Context, string) (*User, error) {
	return nil, ErrNotFound
}

func (noopStore) SignupUser(_ context.Context, u User) (*User, error) {
	return &u, nil
}

func (noopStore) TouchLastLogin(context.Context, string, time.Time) error { return nil }

func (noopStore) LogPrediction(context.Context, PredictionLog) error { return nil }
