package handler

import "github.com/zenbilling/backend/internal/interfaces/http/dto"

// APIResponse is the generic success envelope, declared for API documentation
type APIResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// ErrorResponse is the error envelope, declared for API documentation
type ErrorResponse struct {
	Success bool          `json:"success"`
	Error   dto.ErrorInfo `json:"error"`
}
