package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"monolith/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator. Field names in errors are the
// JSON names of the struct fields.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		})
		instance = v
	})
	return instance
}

// Struct validates s and converts failures into a VALIDATION_ERROR AppError
// carrying one message per failed field.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}

	fields := make(map[string][]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		field := fe.Field()
		msg := message(fe)
		fields[field] = append(fields[field], msg)
		if first == "" {
			first = msg
		}
	}
	return &models.AppError{Code: models.CodeValidation, Message: first, Fields: fields}
}

// message renders a field error in the API's user-facing wording.
func message(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_without", "required_if":
		return fmt.Sprintf("The %s field is required.", label)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", label)
	case "url", "http_url":
		return fmt.Sprintf("The %s field must be a valid URL.", label)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s field must have at least %s items.", label, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s characters.", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s field must not have more than %s items.", label, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s characters.", label, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", strings.TrimSuffix(label, " confirmation"))
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", label)
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", label, fe.Param())
	case "username":
		return fmt.Sprintf("The %s field may not contain spaces.", label)
	case "password":
		return fmt.Sprintf("The %s field must be at least %d characters.", label, MinPasswordLength)
	}
	return fmt.Sprintf("The %s field is invalid.", label)
}
