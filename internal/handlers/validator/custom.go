package validator

import (
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/pkg/videourl"
)

const (
	sourceKindUploadedFile = "uploadedFile"
	sourceKindRemoteURL    = "remoteUrl"
)

func sourceKindValidator(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch fl.Field().String() {
	case sourceKindUploadedFile, sourceKindRemoteURL:
		return true
	default:
		return false
	}
}

// sourceRefValidator checks the reference against the SourceKind field of the
// same struct.
func sourceRefValidator(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	ref := fl.Field().String()

	parent := fl.Parent()
	if parent.Kind() == reflect.Pointer {
		parent = parent.Elem()
	}
	kindField := parent.FieldByName("SourceKind")
	if !kindField.IsValid() || kindField.Kind() != reflect.String {
		return false
	}

	switch kindField.String() {
	case sourceKindRemoteURL:
		return videourl.IsRecognized(ref)
	case sourceKindUploadedFile:
		return objectstore.IsHandle(ref)
	default:
		// reported by source_kind
		return true
	}
}

func videoURLValidator(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return videourl.IsRecognized(fl.Field().String())
}
