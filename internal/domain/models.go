// Package domain defines the models for scheduled customer calls. These types
// are mapped with GORM onto the in-memory store and are shared across the
// repository, service and HTTP layers.
package domain

import "time"

// CallStatus is the lifecycle stage of a call record.
type CallStatus string

const (
	StatusScheduled CallStatus = "scheduled"
	StatusCompleted CallStatus = "completed"
	StatusMissed    CallStatus = "missed"
)

// Statuses lists every CallStatus in display order.
var Statuses = []CallStatus{StatusScheduled, StatusCompleted, StatusMissed}

// Valid reports whether s is one of the known statuses.
func (s CallStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusMissed:
		return true
	}
	return false
}

// Call represents one scheduled, completed or missed customer call.
//
// Fields:
//   - ID: opaque identifier minted at creation; never changes afterwards.
//   - Position: insertion sequence; the list is always ordered by it.
//   - CustomerName / Phone / Date / Time / Notes: form values stored verbatim.
//     Date is the "YYYY-MM-DD" text of a date control, Time is "HH:MM".
//   - Status: starts at scheduled and only changes through SetStatus.
//   - Duration: optional free text. No operation writes it; seed data may.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Call struct {
	ID           string     `json:"id"            gorm:"type:varchar(32);primaryKey"`
	Position     int64      `json:"-"             gorm:"not null;uniqueIndex:ux_calls_position"`
	CustomerName string     `json:"customer_name" gorm:"type:text;not null"`
	Phone        string     `json:"phone"         gorm:"type:text;not null"`
	Date         string     `json:"date"          gorm:"type:varchar(32);not null"`
	Time         string     `json:"time"          gorm:"type:varchar(16);not null"`
	Status       CallStatus `json:"status"        gorm:"type:varchar(16);not null;default:'scheduled';check:status IN ('scheduled','completed','missed')"`
	Notes        string     `json:"notes"         gorm:"type:text;not null;default:''"`
	Duration     *string    `json:"duration,omitempty" gorm:"type:varchar(64)"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Call.
func (Call) TableName() string { return "calls" }

// Form returns the editable fields of c as a form buffer.
func (c Call) Form() CallForm {
	return CallForm{
		CustomerName: c.CustomerName,
		Phone:        c.Phone,
		Date:         c.Date,
		Time:         c.Time,
		Notes:        c.Notes,
	}
}

// CallForm is the create/edit form buffer. Field names double as the HTML
// form field names through the form tags.
type CallForm struct {
	CustomerName string `form:"customer_name"`
	Phone        string `form:"phone"`
	Date         string `form:"date"`
	Time         string `form:"time"`
	Notes        string `form:"notes"`
}

// Missing returns the form names of required fields that are empty, in form
// order. A whitespace-only value counts as present.
func (f CallForm) Missing() []string {
	var out []string
	if f.CustomerName == "" {
		out = append(out, "customer_name")
	}
	if f.Phone == "" {
		out = append(out, "phone")
	}
	if f.Date == "" {
		out = append(out, "date")
	}
	if f.Time == "" {
		out = append(out, "time")
	}
	return out
}
