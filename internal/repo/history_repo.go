// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-user
// generation history.
//
// History is append-only: AddHistory prepends (newer rows get higher
// auto-increment ids and lists order on id descending), nothing is ever
// reordered or rewritten, and the core never evicts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-gif-backend/internal/domain"
)

// AddHistory archives a completed generation for userID. The sequence for a
// user is created implicitly on first use.
func AddHistory(ctx context.Context, db *gorm.DB, userID, query, url string) (*domain.GenerationHistory, error) {
	rec := &domain.GenerationHistory{
		UserID:    userID,
		Query:     query,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListHistory returns the full history for userID, most recent first.
// An untouched user yields an empty slice, not an error.
func ListHistory(ctx context.Context, db *gorm.DB, userID string) ([]domain.GenerationHistory, error) {
	out := []domain.GenerationHistory{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&out).Error
	return out, err
}

// CountHistory returns the total number of history entries for pagination.
func CountHistory(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.GenerationHistory{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListHistoryPage returns a page of history entries for userID, most recent
// first. The caller computes offset and limit.
func ListHistoryPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.GenerationHistory, error) {
	out := []domain.GenerationHistory{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
