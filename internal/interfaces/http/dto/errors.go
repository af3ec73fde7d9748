package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Stock business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInsufficientStock is used when on-hand stock is insufficient
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeInsufficientAvailable is used when unreserved stock is insufficient
	ErrCodeInsufficientAvailable = "ERR_INSUFFICIENT_AVAILABLE"
	// ErrCodeOverRelease is used when a release exceeds the outstanding hold
	ErrCodeOverRelease = "ERR_OVER_RELEASE"
	// ErrCodeInvalidLocation is used when a location is not in the warehouse
	ErrCodeInvalidLocation = "ERR_INVALID_LOCATION"
	// ErrCodeEmptyTransaction is used when a movement carries no lines
	ErrCodeEmptyTransaction = "ERR_EMPTY_TRANSACTION"
	// ErrCodeReservationNotActive is used for operations on terminal reservations
	ErrCodeReservationNotActive = "ERR_RESERVATION_NOT_ACTIVE"
	// ErrCodeBusy is used when optimistic retries on a contended balance ran out
	ErrCodeBusy = "ERR_BUSY"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:          http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:     http.StatusUnprocessableEntity,
	ErrCodeInsufficientAvailable: http.StatusUnprocessableEntity,
	ErrCodeOverRelease:           http.StatusUnprocessableEntity,
	ErrCodeInvalidLocation:       http.StatusUnprocessableEntity,

	// A movement without lines and lifecycle misuse are caller mistakes
	ErrCodeEmptyTransaction:     http.StatusBadRequest,
	ErrCodeReservationNotActive: http.StatusConflict,

	// Retry exhaustion on a hot balance is a transient server-side condition
	ErrCodeBusy: http.StatusServiceUnavailable,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the wire format codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_STATE":          ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":     ErrCodeInsufficientStock,
	"INSUFFICIENT_AVAILABLE": ErrCodeInsufficientAvailable,
	"OVER_RELEASE":           ErrCodeOverRelease,
	"INVALID_LOCATION":       ErrCodeInvalidLocation,
	"EMPTY_TRANSACTION":      ErrCodeEmptyTransaction,
	"RESERVATION_NOT_ACTIVE": ErrCodeReservationNotActive,
	"RESERVATION_MISMATCH":   ErrCodeConflict,
	"BUSY":                   ErrCodeBusy,
	"INVALID_MOVEMENT_TYPE":  ErrCodeInvalidInput,
	"INVALID_WAREHOUSE":      ErrCodeInvalidInput,
	"INVALID_PRODUCT":        ErrCodeInvalidInput,
	"INVALID_QUANTITY":       ErrCodeInvalidInput,
	"INVALID_KIND":           ErrCodeInvalidInput,
	"INVALID_DOCUMENT":       ErrCodeInvalidInput,
	"VALIDATION_ERROR":       ErrCodeValidation,
	"BAD_REQUEST":            ErrCodeBadRequest,
	"INTERNAL_ERROR":         ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format
// If the code is already in the wire format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if wireCode, ok := DomainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
