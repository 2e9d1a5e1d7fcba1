package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by module prefix ("CMP_001", "TRK_002") so that logs and
// metrics can be sliced per subsystem without parsing messages.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeUnknown        = ErrorCode("")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeNotImplemented = ErrCodeNotImplemented
	CodeCacheError     = ErrCodeCacheError
)

// Comparison Module Error Codes
const (
	ErrCodeUnknownMetric          ErrorCode = "CMP_001"
	ErrCodeInsufficientEntities   ErrorCode = "CMP_002"
	ErrCodePayloadDecodeFailed    ErrorCode = "CMP_003"
	ErrCodeDuplicateTechnology    ErrorCode = "CMP_004"
	ErrCodeComparisonEncodeFailed ErrorCode = "CMP_005"
)

// Tracking Module Error Codes
const (
	ErrCodeTechnologyNotTracked ErrorCode = "TRK_001"
	ErrCodeTechnologyNotReady   ErrorCode = "TRK_002"
	ErrCodeTechnologyMissing    ErrorCode = "TRK_003"
	ErrCodeTechnologyRejected   ErrorCode = "TRK_004"
	ErrCodeTrackerClosed        ErrorCode = "TRK_005"
)

// Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
	ErrCodeObjectNotFound        ErrorCode = "SRC_005"
	ErrCodeGraphQueryFailed      ErrorCode = "SRC_006"
	ErrCodeMessageQueueError     ErrorCode = "SRC_007"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeUnknownMetric:          http.StatusBadRequest,
	ErrCodeInsufficientEntities:   http.StatusUnprocessableEntity,
	ErrCodePayloadDecodeFailed:    http.StatusBadRequest,
	ErrCodeDuplicateTechnology:    http.StatusConflict,
	ErrCodeComparisonEncodeFailed: http.StatusInternalServerError,

	ErrCodeTechnologyNotTracked: http.StatusNotFound,
	ErrCodeTechnologyNotReady:   http.StatusConflict,
	ErrCodeTechnologyMissing:    http.StatusNotFound,
	ErrCodeTechnologyRejected:   http.StatusUnprocessableEntity,
	ErrCodeTrackerClosed:        http.StatusServiceUnavailable,

	ErrCodeDataSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceAuthFailed:  http.StatusBadGateway,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,
	ErrCodeObjectNotFound:        http.StatusNotFound,
	ErrCodeGraphQueryFailed:      http.StatusBadGateway,
	ErrCodeMessageQueueError:     http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeUnknownMetric:          "unknown comparison metric",
	ErrCodeInsufficientEntities:   "at least two technologies are required",
	ErrCodePayloadDecodeFailed:    "failed to decode technology payload",
	ErrCodeDuplicateTechnology:    "technology listed more than once",
	ErrCodeComparisonEncodeFailed: "failed to encode comparison result",

	ErrCodeTechnologyNotTracked: "technology is not tracked",
	ErrCodeTechnologyNotReady:   "technology is still processing",
	ErrCodeTechnologyMissing:    "technology data is missing",
	ErrCodeTechnologyRejected:   "technology was rejected by validation",
	ErrCodeTrackerClosed:        "tracker is closed",

	ErrCodeDataSourceUnavailable: "data source unavailable",
	ErrCodeDataSourceRateLimited: "data source rate limited",
	ErrCodeDataSourceAuthFailed:  "data source authentication failed",
	ErrCodeDataSourceParseError:  "failed to parse data source response",
	ErrCodeObjectNotFound:        "object not found in storage",
	ErrCodeGraphQueryFailed:      "graph database query failed",
	ErrCodeMessageQueueError:     "message queue error",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
