package constants

// Verification Error Codes
// These constants define the failure taxonomy for the verification flow,
// from the HTTP controller down to the Discord role mutation step.

// Controller-level errors (abort the flow, rendered to the browser)
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	ErrCodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	ErrCodeProfileIncomplete   = "PROFILE_INCOMPLETE"
)

// Mutator-level errors (logged, never surfaced to the browser)
const (
	ErrCodeGuildNotFound          = "GUILD_NOT_FOUND"
	ErrCodeMemberNotFound         = "MEMBER_NOT_FOUND"
	ErrCodeRoleNotConfigured      = "ROLE_NOT_CONFIGURED"
	ErrCodeInsufficientPermission = "INSUFFICIENT_PERMISSION"
)

// Transport errors
const (
	ErrCodeNetworkError = "NETWORK_ERROR"
)

// Error Messages
// Human-readable messages corresponding to error codes. Controller-level
// messages are shown on the terminal error page.

var VerificationErrorMessages = map[string]string{
	ErrCodeBadRequest:          "Missing user_id or guild_id.",
	ErrCodeInvalidState:        "Invalid state. Verification session might have expired or been tampered with.",
	ErrCodeAuthorizationDenied: "ION authorization failed or was denied.",
	ErrCodeTokenExchangeFailed: "Could not fetch token from ION.",
	ErrCodeProfileIncomplete:   "Could not retrieve ION username from profile.",

	ErrCodeGuildNotFound:          "The configured Discord server could not be found",
	ErrCodeMemberNotFound:         "The user is not a member of the Discord server",
	ErrCodeRoleNotConfigured:      "A mapped role name does not exist in the Discord server",
	ErrCodeInsufficientPermission: "The bot lacks permission to manage roles for this member",

	ErrCodeNetworkError: "Unable to reach the remote service",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := VerificationErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
