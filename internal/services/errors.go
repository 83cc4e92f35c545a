// Package services defines the business logic for prices, content, the
// indexing queue, the blog publication pipeline, generated site files and ad
// counters. This file centralizes the service-level error values so they can
// be returned consistently by service methods and checked by callers.
//
// Translation into HTTP status codes is performed by the handler layer.
package services

import "errors"

// Validation errors. Returned before any write.
var (
	// ErrInvalidPrice is returned when a price is missing, zero or negative.
	ErrInvalidPrice = errors.New("prices must be positive numbers")

	// ErrInvalidDate is returned when a date is not a valid YYYY-MM-DD value.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

	// ErrInvalidContent is returned when a content item lacks a title or body.
	ErrInvalidContent = errors.New("title and content are required")

	// ErrInvalidURL is returned when a queue URL is not absolute http(s).
	ErrInvalidURL = errors.New("url must be an absolute http(s) URL")

	// ErrUnknownCity is returned for cities outside the district catalogue.
	ErrUnknownCity = errors.New("unknown city")
)

// Lookup errors.
var (
	ErrQuoteNotFound   = errors.New("price quote not found")
	ErrContentNotFound = errors.New("content not found")
	ErrEntryNotFound   = errors.New("indexing queue entry not found")
	ErrUnknownSiteFile = errors.New("site file not generated")
	ErrAdNotFound      = errors.New("ad slot not found")
	ErrDuplicateSlug   = errors.New("slug already in use")
)

// Pipeline errors.
var (
	// ErrGeneration wraps any content-generation failure (upstream or decode).
	ErrGeneration = errors.New("content generation failed")

	// ErrMalformedUpstream marks a generator response that could not be
	// decoded into a post. It is always joined with ErrGeneration.
	ErrMalformedUpstream = errors.New("malformed upstream response")
)
