package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/storage"
	"github.com/jonathan/tubedigest/internal/youtube"
	"github.com/stretchr/testify/assert"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "youtubeVideoUrl", Message: "required"}
	assert.Equal(t, "validation error: youtubeVideoUrl - required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	urlErr := youtube.ValidateURL("not-a-url")
	storageErr := &storage.StorageError{Op: "set", Key: "k", Cause: errors.New("disk full")}
	failure := &gateway.FailureError{Step: gateway.StepGenerate, Cause: errors.New("quota")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &ErrValidation{}, http.StatusBadRequest},
		{"bad url", urlErr, http.StatusBadRequest},
		{"wrapped bad url", fmt.Errorf("submit: %w", urlErr), http.StatusBadRequest},
		{"not in history", controller.ErrNotInHistory, http.StatusNotFound},
		{"superseded", controller.ErrSuperseded, http.StatusConflict},
		{"summarization failed", failure, http.StatusBadGateway},
		{"storage", storageErr, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	failure := &gateway.FailureError{Step: gateway.StepRetrieve, Cause: errors.New("secret upstream detail")}
	assert.Equal(t, gateway.MsgSummarizationFailed, publicMessage(failure))
	assert.Equal(t, "internal server error", publicMessage(errors.New("db password wrong")))
	assert.Equal(t, youtube.MsgMalformed, publicMessage(youtube.ValidateURL("not-a-url")))
	assert.Equal(t, controller.DescSaveFailed, publicMessage(&storage.StorageError{Op: "set", Cause: errors.New("x")}))
}
