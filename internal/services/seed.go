package services

import "github.com/tbourn/go-call-agent/internal/domain"

// SampleCalls returns the demo calls a fresh list starts with when seeding is
// enabled: one scheduled call and one completed call that carries a duration.
func SampleCalls() []domain.Call {
	dur := "45 min"
	return []domain.Call{
		{
			ID:           "1",
			CustomerName: "John Smith",
			Phone:        "+1 (555) 123-4567",
			Date:         "2025-10-29",
			Time:         "14:00",
			Status:       domain.StatusScheduled,
			Notes:        "Discuss website redesign project",
		},
		{
			ID:           "2",
			CustomerName: "Sarah Johnson",
			Phone:        "+1 (555) 987-6543",
			Date:         "2025-10-29",
			Time:         "10:30",
			Status:       domain.StatusCompleted,
			Notes:        "Logo design consultation",
			Duration:     &dur,
		},
	}
}
