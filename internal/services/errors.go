// Package services defines the business logic for scheduled customer calls.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrRequiredField is returned when a submitted form leaves customer name,
	// phone, date or time empty. The error is wrapped with the field names.
	ErrRequiredField = errors.New("required field missing")

	// ErrInvalidStatus is returned when a status outside scheduled, completed
	// and missed is requested.
	ErrInvalidStatus = errors.New("invalid call status")
)
