package controllers

import (
	"errors"
	"net/http"

	"storefront-service/apperrors"
	"storefront-service/workflow"

	"github.com/gin-gonic/gin"
)

// toAppError maps workflow sentinels onto HTTP errors; other errors pass
// through for apperrors.ErrorMiddleware to render.
func toAppError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		return apperrors.New(http.StatusConflict, "A carrier request is already in flight", err)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return apperrors.New(http.StatusConflict, "Action not allowed in the current workflow state", err)
	default:
		return err
	}
}

// errorBody renders err for embedding in a workflow view.
func errorBody(err error) gin.H {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return gin.H{"message": "Validation error", "fields": verr.Fields}
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body := gin.H{"message": appErr.Message}
		if appErr.Kind != "" {
			body["kind"] = appErr.Kind
		}
		if appErr.StatusCode != 0 {
			body["carrier_status"] = appErr.StatusCode
		}
		if appErr.TimedOut {
			body["timed_out"] = true
		}
		return body
	}
	return gin.H{"message": err.Error()}
}
