// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"folio/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "Please provide a valid email",
	"url":      "%s must be a valid URL",
	"eqfield":  "%s does not match",
}

// Struct validates s against its `validate` tags. The result is nil or a
// ValidationFailed *models.AppError holding one message per failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, message(fe))
	}
	return models.NewValidationError(msgs...)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be less than %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be more than %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	if tmpl, ok := messages[fe.Tag()]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, field)
		}
		return tmpl
	}
	return fmt.Sprintf("%s is invalid", field)
}

// Password applies the stored password rules.
func Password(password string) error {
	if len(strings.TrimSpace(password)) < 6 {
		return models.NewValidationError("password cannot be less than 6 characters")
	}
	if len(password) > 72 {
		// bcrypt ignores anything past 72 bytes
		return models.NewValidationError("password cannot be more than 72 characters")
	}
	return nil
}

// Email reports whether addr is a syntactically valid email address.
func Email(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}
