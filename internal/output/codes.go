// Package output provides JSON/YAML/styled output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK         = 0  // Success
	ExitUsage      = 1  // Invalid arguments or flags
	ExitNotFound   = 2  // Resource not found
	ExitAuth       = 3  // Not authenticated or session ended
	ExitForbidden  = 4  // Access denied
	ExitRateLimit  = 5  // Rate limited (429)
	ExitNetwork    = 6  // Connection/DNS error
	ExitAPI        = 7  // Server returned error
	ExitConflict   = 8  // Conflicting state (409)
	ExitValidation = 9  // Server rejected the input (400/422)
	ExitTimeout    = 10 // Request exceeded its deadline
)

// Error codes for JSON envelope.
const (
	CodeUsage      = "usage"
	CodeNotFound   = "not_found"
	CodeAuth       = "auth_required"
	CodeForbidden  = "forbidden"
	CodeConflict   = "conflict"
	CodeValidation = "validation"
	CodeRateLimit  = "rate_limit"
	CodeNetwork    = "network"
	CodeTimeout    = "timeout"
	CodeAPI        = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeConflict:
		return ExitConflict
	case CodeValidation:
		return ExitValidation
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeTimeout:
		return ExitTimeout
	case CodeAPI:
		return ExitAPI
	default:
		return ExitAPI
	}
}
