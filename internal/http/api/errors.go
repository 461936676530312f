package api

import (
	"errors"
	"net/http"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
	"github.com/Nixie-Tech-LLC/troupe/internal/workqueue"
)

// ErrorFrom maps a domain error onto the response a client sees. Unknown
// errors become a 500 that does not leak their text.
func ErrorFrom(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrPartialSync):
		return &APIError{Code: http.StatusServiceUnavailable, Message: err.Error(), Retryable: true}
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrBadTimezone),
		errors.Is(err, model.ErrInvalidInput):
		return &APIError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		return &APIError{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrForbidden):
		return &APIError{Code: http.StatusForbidden, Message: "forbidden"}
	case errors.Is(err, model.ErrConflict):
		return &APIError{Code: http.StatusConflict, Message: err.Error()}
	case workqueue.IsRetryable(err):
		return &APIError{Code: http.StatusServiceUnavailable, Message: err.Error(), Retryable: true}
	default:
		return &APIError{Code: http.StatusInternalServerError, Message: "something went wrong, please try again"}
	}
}

func BadRequest(msg string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: msg}
}
