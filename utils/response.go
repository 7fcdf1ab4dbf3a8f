package utils

import (
	"strconv"
	"time"
)

// ===================================================================
// STANDARD RESPONSE PATTERNS
// ===================================================================

// SuccessResponse creates a standard success response envelope.
func SuccessResponse(message string, data interface{}) map[string]interface{} {
	response := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		response["data"] = data
	}
	return response
}

// ErrorResponse creates a standard error response envelope.
func ErrorResponse(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": message,
	}
}

// ValidationErrorResponse creates a 422-style response carrying field-level
// violations.
func ValidationErrorResponse(violations map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": "validation failed",
		"errors":  violations,
	}
}

// GetUnixTimestamp returns the current Unix timestamp.
func GetUnixTimestamp() int64 {
	return time.Now().Unix()
}

// ===================================================================
// PAGINATION HELPERS
// ===================================================================

// PaginationParams holds pagination parameters.
type PaginationParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// GetPaginationParams extracts and validates pagination parameters.
func GetPaginationParams(limitStr, offsetStr string, defaultLimit int) PaginationParams {
	limit := defaultLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	offset := 0
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// ===================================================================
// STRING HELPERS
// ===================================================================

// GetValueOrDefault returns value if not empty, otherwise returns defaultValue.
func GetValueOrDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

// GetIntOrDefault returns value if valid, otherwise returns defaultValue.
func GetIntOrDefault(valueStr string, defaultValue int) int {
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
