package types

// Error codes returned in ErrorResponse.Code.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeBadGateway     = "BAD_GATEWAY"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewError creates an error response
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: message, Code: code}
}

// ValidationError creates a validation error response
func ValidationError(details string) ErrorResponse {
	return NewError(CodeValidation, details)
}

// NotFoundError creates a not found error response
func NotFoundError(resource string) ErrorResponse {
	return NewError(CodeNotFound, resource+" not found")
}

// UnavailableError creates a service unavailable error response
func UnavailableError(details string) ErrorResponse {
	return NewError(CodeUnavailable, details)
}

// BadGatewayError creates an upstream delivery error response
func BadGatewayError(details string) ErrorResponse {
	return NewError(CodeBadGateway, details)
}

// InternalError creates an internal server error response
func InternalError(details string) ErrorResponse {
	return NewError(CodeInternal, details)
}
