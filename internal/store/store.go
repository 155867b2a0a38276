package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing record, regardless of backing store.
var ErrNotFound = errors.New("record not found")

// User is keyed by the external identity subject. Records are never deleted
// by this service.
type User struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Picture     string    `json:"picture,omitempty"`
	Roles       []string  `gorm:"serializer:json" json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

func (User) TableName() string { return "users" }

// PredictionLog records one scored request when the caller identifies
// themselves. Logging failures never fail the request.
type PredictionLog struct {
	ID             uint               `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID         string             `json:"user_id"`
	InputRaw       map[string]any     `gorm:"serializer:json" json:"input_raw"`
	InputFilled    map[string]float64 `gorm:"serializer:json" json:"input_filled"`
	TimeAmountOnly bool               `json:"time_amount_only"`
	ScaledVector   []float64          `gorm:"serializer:json" json:"scaled_vector"`
	Probability    float64            `json:"probability"`
	Decision       int                `json:"decision"`
	Threshold      float64            `json:"threshold"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (PredictionLog) TableName() string { return "predictions" }

// Store is the document-store seam. Exactly two implementations exist: the
// Postgres store and the discard-everything store used when no database is
// configured.
type Store interface {
	// FindUser returns ErrNotFound when no record exists for the subject.
	FindUser(ctx context.Context, id string) (*User, error)
	// SignupUser creates the record if absent and advances last_login either
	// way, returning the current record. Concurrent signups for the same
	// subject resolve to a single record via the store's upsert semantics.
	SignupUser(ctx context.Context, u User) (*User, error)
	// TouchLastLogin advances last_login on an existing record.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// LogPrediction appends one prediction record.
	LogPrediction(ctx context.Context, p PredictionLog) error
}
