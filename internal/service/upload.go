package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/handlers/validator"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/service/mappers"
	"github.com/clipforge/clipforge/pkg/log"
	"github.com/clipforge/clipforge/pkg/metrics"
)

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".m4v":  "video/x-m4v",
}

// UploadService stores source videos and hands back the handle to submit
// them with.
type UploadService struct {
	objects   objectstore.ObjectStore
	maxBytes  int64
	validator *validator.Validator
	logger    *log.StructuredLogger
}

// NewUploadService accepts a nil object store; uploads are then refused.
func NewUploadService(objects objectstore.ObjectStore, maxBytes int64) *UploadService {
	return &UploadService{
		objects:   objects,
		maxBytes:  maxBytes,
		validator: validator.NewValidator(),
		logger:    log.NewDebugLogger("upload_service"),
	}
}

func (s *UploadService) Enabled() bool {
	return s.objects != nil
}

// MaxBytes is the largest accepted file; zero means unlimited.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *UploadService) Upload(ctx context.Context, user auth.User, form mappers.UploadForm, r io.Reader) (*objectstore.ObjectInfo, error) {
	tracer := s.logger.WithContext(ctx).
		Operation("upload_video").
		WithString("owner", user.Username).
		WithString("filename", form.Filename).
		Build()

	if s.objects == nil {
		return nil, NewErrUploadsDisabled()
	}

	if err := s.validator.Struct(form); err != nil {
		return nil, NewErrValidation(err)
	}
	if s.maxBytes > 0 && form.Size > s.maxBytes {
		return nil, NewErrValidationf("file is larger than %d bytes", s.maxBytes)
	}

	ext := strings.ToLower(path.Ext(form.Filename))
	expected, ok := videoExtensions[ext]
	if !ok {
		return nil, NewErrValidationf("file %q is not a supported video", form.Filename)
	}
	contentType := form.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = expected
	}
	if !strings.HasPrefix(contentType, "video/") {
		return nil, NewErrValidationf("content type %q is not a video", contentType)
	}

	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}

	key := fmt.Sprintf("%s/%s%s", user.Username, uuid.NewString(), ext)
	info, err := s.objects.Put(ctx, key, r, form.Size, contentType)
	if err != nil {
		metrics.IncreaseUploadsTotalMetric(false)
		tracer.Error(err).Log()
		return nil, NewErrPersistence(err)
	}
	if s.maxBytes > 0 && info.Size > s.maxBytes {
		metrics.IncreaseUploadsTotalMetric(false)
		if err := s.objects.Delete(ctx, info.Handle); err != nil {
			tracer.Step("cleanup_failed").WithString("handle", info.Handle).WithString("error", err.Error()).Log()
		}
		return nil, NewErrValidationf("file is larger than %d bytes", s.maxBytes)
	}
	metrics.IncreaseUploadsTotalMetric(true)

	tracer.Success().WithString("handle", info.Handle).Log()
	return info, nil
}
