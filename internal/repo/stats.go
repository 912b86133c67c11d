// Package repo implements the storage layer for call records, backed by GORM.
// This file provides small aggregate queries used by the list page summary
// and the call gauges.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/domain"
)

// CallsStats returns the number of calls per status. Every known status is
// present in the result, with zero when no call has it.
func CallsStats(ctx context.Context, db *gorm.DB) (map[domain.CallStatus]int64, error) {
	var rows []struct {
		Status domain.CallStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Call{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.CallStatus]int64, len(domain.Statuses))
	for _, s := range domain.Statuses {
		out[s] = 0
	}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
