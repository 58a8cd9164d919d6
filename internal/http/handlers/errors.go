// Error codes carried in ErrorResponse.code. Clients branch on these, not on
// message text. Generic codes mirror their HTTP status; create_failed,
// list_failed and invalid_status are specific to the organization directory.
//
// The metadata endpoint is the one exception: it answers 400 with the
// {"error": "..."} body its enrichment clients expect (see MetadataError).

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Domain-specific:
	ErrCodeCreateFailed  = "create_failed"
	ErrCodeListFailed    = "list_failed"
	ErrCodeInvalidStatus = "invalid_status"
)

// Messages of the metadata endpoint's 400 answers.
const (
	MsgURLRequired   = "URL parameter is required"
	MsgInvalidURLFmt = "Invalid URL format"
)
