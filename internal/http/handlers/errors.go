package handlers

// Stable error codes carried by ErrorResponse.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeRequiredField = "required_field"
	ErrCodeInvalidStatus = "invalid_status"
	ErrCodeRenderFailed  = "render_failed"
	ErrCodeExportFailed  = "export_failed"
)
