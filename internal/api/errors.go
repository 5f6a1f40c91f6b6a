package api

import (
	"net/http"

	"cohortaudit/internal/services"
)

// NewErrorResponse classifies err into the structured failure object.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{Kind: services.KindInternal, Error: "unknown error"}
	}
	return ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind string) int {
	switch kind {
	case services.KindInvalidParameter:
		return http.StatusBadRequest
	case services.KindLengthMismatch, services.KindInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
