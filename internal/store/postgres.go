package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type postgresStore struct {
	db *gorm.DB
}

// NewPostgres connects to the configured database and migrates the user and
// prediction tables.
func NewPostgres(databaseURL string) (Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  databaseURL,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&User{}, &PredictionLog{}); err != nil {
		return nil, err
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) FindUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *postgresStore) SignupUser(ctx context.Context, u User) (*User, error) {
	// Atomic create-or-touch: an existing record keeps its created_at and
	// profile fields, only last_login moves.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_login_at": u.LastLoginAt}),
	}).Create(&u).Error
	if err != nil {
		return nil, err
	}
	return s.FindUser(ctx, u.ID)
}

func (s *postgresStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (s *postgresStore) LogPrediction(ctx context.Context, p PredictionLog) error {
	return s.db.WithContext(ctx).Create(&p).Error
}
