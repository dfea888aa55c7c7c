package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/storage"
	"github.com/jonathan/tubedigest/internal/youtube"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		urlErr     *youtube.ValidationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation), errors.As(err, &urlErr):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrNotInHistory):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrSummarizationFailed):
		return http.StatusBadGateway
	case storage.IsStorageError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the text safe to show a client for err.
func publicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return controller.DescSaveFailed
	default:
		return err.Error()
	}
}
