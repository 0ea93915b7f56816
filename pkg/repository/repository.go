// Package repository provides a generic gorm-backed store used by domain
// services. Filters are struct values; zero fields are ignored by gorm.
package repository

import (
	"context"

	"github.com/staudal/backend-postbuddy-sub000/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the narrow persistence surface shared by domain services.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	CreateInBatches(ctx context.Context, records []*T, batchSize int) error
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, filter *T) (*T, error)
	Count(ctx context.Context, filter *T) (int64, error)
	Updates(ctx context.Context, record *T, values map[string]any) error
	Delete(ctx context.Context, filter *T) error
	WithTx(tx *gorm.DB) Repository[T]
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore constructs a Repository bound to the given connection.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *store[T]) CreateInBatches(ctx context.Context, records []*T, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return s.db.WithContext(ctx).CreateInBatches(records, batchSize).Error
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	query := s.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		query = query.Where(filter)
	}
	for _, opt := range opts {
		query = opt(query)
	}
	var records []*T
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) FindOne(ctx context.Context, filter *T) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).Where(filter).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var count int64
	query := s.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		query = query.Where(filter)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *store[T]) Updates(ctx context.Context, record *T, values map[string]any) error {
	return s.db.WithContext(ctx).Model(record).Updates(values).Error
}

func (s *store[T]) Delete(ctx context.Context, filter *T) error {
	return s.db.WithContext(ctx).Where(filter).Delete(new(T)).Error
}

func (s *store[T]) WithTx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}
