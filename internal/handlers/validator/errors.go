package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrInvalidForm struct {
	error
}

func NewErrInvalidForm(format string, args ...any) *ErrInvalidForm {
	return &ErrInvalidForm{fmt.Errorf(format, args...)}
}

// Humanize turns validator errors into a single readable message.
func Humanize(err error) *ErrInvalidForm {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewErrInvalidForm("%s", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return NewErrInvalidForm("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "source_kind":
		return fmt.Sprintf("%s must be one of %s, %s", field, sourceKindUploadedFile, sourceKindRemoteURL)
	case "source_ref":
		return fmt.Sprintf("%s is not a recognized video link or upload handle", field)
	case "video_url":
		return fmt.Sprintf("%s is not a recognized video link", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
