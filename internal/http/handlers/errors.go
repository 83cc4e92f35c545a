// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics, domain codes name pipeline failures
// that the status alone cannot convey (a 502 can be an unreachable generator
// or one that answered with an undecodable post).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "generation_malformed",
//	  "message": "content generation failed: malformed upstream response"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidPrice        = "invalid_price"
	ErrCodeInvalidDate         = "invalid_date"
	ErrCodeInvalidContent      = "invalid_content"
	ErrCodeInvalidURL          = "invalid_url"
	ErrCodeUnknownCity         = "unknown_city"
	ErrCodeDuplicateSlug       = "duplicate_slug"
	ErrCodeGenerationFailed    = "generation_failed"
	ErrCodeGenerationMalformed = "generation_malformed"
	ErrCodeIndexingFailed      = "indexing_failed"
	ErrCodeRegenerateFailed    = "regenerate_failed"
	ErrCodeUnknownStream       = "unknown_stream"
)
