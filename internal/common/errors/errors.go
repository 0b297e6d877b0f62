// Package errors provides standardized error handling for the matching pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidProfile    ErrorCode = "INVALID_PROFILE"
	ErrCodeInvalidGrantData  ErrorCode = "INVALID_GRANT_DATA"
	ErrCodeScoringFailed     ErrorCode = "SCORING_FAILED"
	ErrCodeDiscoveryFailed   ErrorCode = "DISCOVERY_FAILED"

	ErrCodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeCacheWriteFailed   ErrorCode = "CACHE_WRITE_FAILED"
	ErrCodeEnrichmentFailed   ErrorCode = "AI_ENRICHMENT_FAILED"
	ErrCodeEnrichmentTimeout  ErrorCode = "AI_ENRICHMENT_TIMEOUT"
	ErrCodeGrantSourceFailed  ErrorCode = "GRANT_SOURCE_FAILED"
	ErrCodeProfileStoreFailed ErrorCode = "PROFILE_STORE_FAILED"
	ErrCodeAlertSendFailed    ErrorCode = "ALERT_SEND_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewInvalidProfileError creates a non-retryable error for a malformed profile.
func NewInvalidProfileError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidProfile,
		Message:   "User profile is missing or malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidGrantDataError creates a non-retryable error for unparseable grant input.
func NewInvalidGrantDataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidGrantData,
		Message:   "Grant data could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. Collaborator Errors
// ==========================

// Collaborator identifies an external dependency of the pipeline.
type Collaborator string

const (
	CollaboratorCache       Collaborator = "match_cache"
	CollaboratorEnricher    Collaborator = "ai_enricher"
	CollaboratorGrantSource Collaborator = "grant_source"
	CollaboratorAlerts      Collaborator = "alerts"
)

// CollaboratorError wraps a failure from an external collaborator. The
// pipeline recovers from these locally (cache miss / deterministic-only
// results); they are logged centrally, never surfaced to end users.
type CollaboratorError struct {
	Collaborator Collaborator
	Code         ErrorCode
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collaborator, e.Code, e.Cause)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// NewCollaboratorError wraps err as a recoverable collaborator failure.
func NewCollaboratorError(c Collaborator, code ErrorCode, err error) *CollaboratorError {
	return &CollaboratorError{Collaborator: c, Code: code, Cause: err}
}
