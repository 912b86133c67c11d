package domain

import "time"

// FormSubmission records a processed form token so that a resubmitted form
// (double click, browser refresh after POST) is not applied twice.
type FormSubmission struct {
	Token     string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CallID    string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (FormSubmission) TableName() string { return "form_submissions" }
