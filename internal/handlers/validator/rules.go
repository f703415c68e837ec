package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewJobValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("source_kind", sourceKindValidator),
		},
		{
			Rule: registerFn("source_ref", sourceRefValidator),
		},
		{
			Rule: registerFn("video_url", videoURLValidator),
		},
	}
}
