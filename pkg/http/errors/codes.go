package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Account errors
	ErrCodeRegistrationFailed = "registration_failed"
	ErrCodeLoginFailed        = "login_failed"
	ErrCodeRefreshFailed      = "refresh_failed"
	ErrCodeResetFailed        = "reset_failed"

	// Quiz errors
	ErrCodeQuizGenerationFailed = "quiz_generation_failed"
	ErrCodeQuizNotFound         = "quiz_not_found"
	ErrCodeQuizFetchFailed      = "quiz_fetch_failed"
	ErrCodeQuizDeleteFailed     = "quiz_delete_failed"
	ErrCodeInvalidQuizID        = "invalid_quiz_id"
	ErrCodeInvalidShareToken    = "invalid_share_token"
	ErrCodeShareRotationFailed  = "share_rotation_failed"

	// Attempt errors
	ErrCodeSubmitFailed       = "submit_failed"
	ErrCodeAttemptFetchFailed = "attempt_fetch_failed"
	ErrCodeResultsFetchFailed = "results_fetch_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// OAuth errors
	ErrCodeOAuthNotConfigured  = "oauth_not_configured"
	ErrCodeOAuthStartFailed    = "oauth_start_failed"
	ErrCodeOAuthCallbackFailed = "oauth_callback_failed"
	ErrCodeOAuthMissingCode    = "missing_code"
	ErrCodeOAuthInvalidState   = "invalid_state"
	ErrCodeUserCreationFailed  = "user_creation_failed"
)
