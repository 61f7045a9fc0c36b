// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// PendingGeneration model, the durable mapping from a service-assigned
// prediction id to the chat context it must be delivered into.
//
// Error semantics:
//   - When a record is not found, GetPending returns ErrNotFound.
//   - DeletePending on an absent id is a no-op reporting found=false,
//     never an error.
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gif-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePending inserts a pending-generation record keyed by the
// service-assigned prediction id. CreatedAt is set to UTC.
func CreatePending(ctx context.Context, db *gorm.DB, rec *domain.PendingGeneration) error {
	rec.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(rec).Error
}

// GetPending fetches a pending record by prediction id, or ErrNotFound.
func GetPending(ctx context.Context, db *gorm.DB, id string) (*domain.PendingGeneration, error) {
	var rec domain.PendingGeneration
	err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeletePending removes a pending record by prediction id. Deleting a record
// that was already deleted reports found=false with a nil error, so callers
// can treat repeated webhook deliveries as no-ops.
func DeletePending(ctx context.Context, db *gorm.DB, id string) (found bool, err error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.PendingGeneration{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
