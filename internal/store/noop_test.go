package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopStore(t *testing.T) {
	s := NewNoop()
	ctx := context.Background()

	if _, err := s.FindUser(ctx, "sub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	u, err := s.SignupUser(ctx, User{ID: "sub-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.ID != "sub-1" || u.Email != "a@example.com" {
		t.Fatalf("signup should echo the input, got %+v", u)
	}

	// nothing persisted: a later lookup still misses
	if _, err := s.FindUser(ctx, "sub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v after signup, want ErrNotFound", err)
	}

	if err := s.TouchLastLogin(ctx, "sub-1", time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := s.LogPrediction(ctx, PredictionLog{UserID: "sub-1"}); err != nil {
		t.Fatalf("log: %v", err)
	}
}
