// Package repo implements the storage layer for call records, backed by GORM.
// This file provides repository functions for the Call model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only storage and query composition. Minting
// identifiers and deciding initial status belong to the service layer.
//
// Error semantics:
//   - When a call is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - Other gorm errors are propagated unchanged.
//
// Functions:
//
//   - InsertCall(ctx, db, call) -> error
//     Appends a call at the end of the list (next position).
//
//   - ListCalls(ctx, db) -> []domain.Call, error
//     Returns all calls in insertion order.
//
//   - GetCall(ctx, db, id) -> *domain.Call, error
//
//   - UpdateCallDetails(ctx, db, id, form) -> error
//     Overwrites the editable columns, including empty values.
//
//   - UpdateCallStatus(ctx, db, id, status) -> error
//
//   - DeleteCall(ctx, db, id) -> error
//
//   - SeedCalls(ctx, db, calls) -> error
//     Inserts calls in order when the table is empty.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertCall stores c after every existing call. c.Position is assigned here;
// all other fields, including ID and Status, must be set by the caller.
func InsertCall(ctx context.Context, db *gorm.DB, c *domain.Call) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&domain.Call{}).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		c.Position = last + 1
		return tx.Create(c).Error
	})
}

// ListCalls returns all calls ordered by insertion. It returns an empty slice
// when there are none.
func ListCalls(ctx context.Context, db *gorm.DB) ([]domain.Call, error) {
	out := []domain.Call{}
	err := db.WithContext(ctx).
		Order("position asc").
		Find(&out).Error
	return out, err
}

// GetCall fetches a single call by ID, or ErrNotFound if missing.
func GetCall(ctx context.Context, db *gorm.DB, id string) (*domain.Call, error) {
	var c domain.Call
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCallDetails overwrites customer name, phone, date, time and notes of
// the call identified by id. ID, position, status and duration are left
// untouched. Returns ErrNotFound if no row matched.
func UpdateCallDetails(ctx context.Context, db *gorm.DB, id string, f domain.CallForm) error {
	res := db.WithContext(ctx).
		Model(&domain.Call{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"customer_name": f.CustomerName,
			"phone":         f.Phone,
			"date":          f.Date,
			"time":          f.Time,
			"notes":         f.Notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCallStatus sets the status of the call identified by id. Returns
// ErrNotFound if no row matched.
func UpdateCallStatus(ctx context.Context, db *gorm.DB, id string, status domain.CallStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Call{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCall permanently removes the call identified by id. Returns
// ErrNotFound if no row matched.
func DeleteCall(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Call{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedCalls inserts calls in the given order, but only into an empty table,
// so restarting against a shared in-memory database does not duplicate them.
func SeedCalls(ctx context.Context, db *gorm.DB, calls []domain.Call) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Call{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for i := range calls {
		if err := InsertCall(ctx, db, &calls[i]); err != nil {
			return err
		}
	}
	return nil
}
