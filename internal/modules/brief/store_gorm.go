package brief

import (
	"context"
	"errors"

	"github.com/threadbrief/core/internal/models"
	"github.com/threadbrief/core/internal/pkg/clock"
	"github.com/threadbrief/core/internal/pkg/shortid"
	"gorm.io/gorm"
)

// GormStore is the durable Store substitute. Collision safety comes from
// the primary-key constraint: a duplicate id surfaces as a conflict error
// and the insert is retried with a fresh id.
type GormStore struct {
	db  *gorm.DB
	ids *shortid.Generator
	clk clock.Clock
}

func NewGormStore(db *gorm.DB, ids *shortid.Generator, clk clock.Clock) (*GormStore, error) {
	if ids == nil {
		ids = shortid.NewGenerator(nil, shortid.DefaultLength)
	}
	if clk == nil {
		clk = clock.System()
	}
	if err := db.AutoMigrate(&models.Brief{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, ids: ids, clk: clk}, nil
}

func (s *GormStore) Create(ctx context.Context, f *Fields) (*models.Brief, error) {
	b := briefFromFields(f, s.clk)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		b.ID = s.ids.Next()
		err := s.db.WithContext(ctx).Create(b).Error
		if err == nil {
			return b, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, err
	}
	return nil, ErrIDExhausted
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Brief, error) {
	var b models.Brief
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
