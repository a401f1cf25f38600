// pkg/models/api.go
package models

// Laravel-style validation error response
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// Generic error response (403/404/409/422/500). Case carries the current,
// unmodified view when the caller is allowed to see it.
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Forbidden"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
	Reason  string `json:"reason,omitempty" example:"NO_NEW_DOCUMENTS"`
	Case    any    `json:"case,omitempty"`
}
