// Package repo implements the storage layer for call records, backed by GORM.
// This file provides helpers for FormSubmission records, which keep a
// resubmitted create/edit form from being applied twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/domain"
)

// ErrDuplicate indicates that a submission with the same token already exists.
var ErrDuplicate = errors.New("duplicate")

// GetSubmission returns a non-expired submission for token or ErrNotFound.
func GetSubmission(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.FormSubmission, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	var rec domain.FormSubmission
	err := db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateSubmission records token as processed for ttl. It returns ErrDuplicate
// when the token is already stored.
func CreateSubmission(ctx context.Context, db *gorm.DB, token, callID string, ttl time.Duration) (*domain.FormSubmission, error) {
	now := time.Now().UTC()
	rec := &domain.FormSubmission{
		Token:     token,
		CallID:    callID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeSubmissions deletes submissions that expired at or before now and
// returns how many were removed.
func PurgeSubmissions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.FormSubmission{})
	return res.RowsAffected, res.Error
}
