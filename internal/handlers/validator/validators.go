package validator

import (
	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator wraps go-playground/validator with the custom rules registered
// and reports failures as *ErrInvalidForm.
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
}

// Struct validates s and returns nil or an *ErrInvalidForm naming every
// failed field.
func (v *Validator) Struct(s any) error {
	if err := v.validator.Struct(s); err != nil {
		return Humanize(err)
	}
	return nil
}
