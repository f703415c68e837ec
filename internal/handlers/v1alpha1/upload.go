package v1alpha1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/handlers/v1alpha1/mappers"
	"github.com/clipforge/clipforge/internal/service"
	srvMappers "github.com/clipforge/clipforge/internal/service/mappers"
	"github.com/clipforge/clipforge/pkg/log"
)

const (
	// multipart parts above this size spill to temporary files
	uploadMemory = 32 << 20
	// room for multipart boundaries and part headers around the file
	multipartOverhead = 64 << 10
)

// (POST /uploads)
func (h *ServiceHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("upload_handler").WithContext(r.Context()).Operation("upload_video").Build()

	if h.uploadSrv == nil || !h.uploadSrv.Enabled() {
		renderError(w, r, service.NewErrUploadsDisabled())
		return
	}

	if limit := h.uploadSrv.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderMessage(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body is larger than %d bytes", tooLarge.Limit))
			return
		}
		renderMessage(w, r, http.StatusBadRequest, "failed to read multipart form: "+err.Error())
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			renderMessage(w, r, http.StatusBadRequest, "file is required")
			return
		}
		renderMessage(w, r, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}
	defer file.Close()

	user := auth.MustHaveUser(r.Context())
	form := srvMappers.UploadForm{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}

	info, err := h.uploadSrv.Upload(r.Context(), user, form, file)
	if err != nil {
		logger.Error(err).Log()
		renderError(w, r, err)
		return
	}

	logger.Success().WithString("handle", info.Handle).Log()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.UploadToApi(*info))
}
