package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/pkg/requestid"
)

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	var (
		validation *service.ErrValidation
		notFound   *service.ErrResourceNotFound
		invalid    *service.ErrInvalidState
		conflict   *service.ErrConflict
		disabled   *service.ErrUploadsDisabled
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &disabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zap.S().Named("handlers").Errorw("request failed", "error", err, "request_id", requestid.FromRequest(r))
		message = "internal error"
	}
	renderMessage(w, r, status, message)
}

func renderMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message, RequestId: requestid.FromContextPtr(r.Context())})
}
