package chargebee

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error returned by the Chargebee API
type APIError struct {
	StatusCode   int    `json:"http_status_code"`
	Message      string `json:"message"`
	Type         string `json:"type"`
	APIErrorCode string `json:"api_error_code"`
	Param        string `json:"param"`
	ErrorCode    string `json:"error_code"`
}

func (e *APIError) Error() string {
	if e.APIErrorCode != "" {
		return fmt.Sprintf("chargebee API error (status %d, %s): %s", e.StatusCode, e.APIErrorCode, e.Message)
	}
	return fmt.Sprintf("chargebee API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a Chargebee resource_not_found error
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.StatusCode == http.StatusNotFound || apiErr.APIErrorCode == "resource_not_found"
}
