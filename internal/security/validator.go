package security

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator validates request structs and translates failures into
// domain.ValidationError with one message per JSON field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the username and password rules registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	// max counts runes; bcrypt counts bytes
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})

	return &Validator{validate: v}
}

// IsStrongPassword requires at least one upper-case letter, one lower-case letter and one digit
func IsStrongPassword(password string) bool {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Struct validates s. It returns nil or a *domain.ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &domain.ValidationError{Message: err.Error()}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = "field is required"
		case "email":
			fields[field] = "invalid email format"
		case "min":
			fields[field] = "must be at least " + e.Param() + " characters"
		case "max":
			fields[field] = "must be at most " + e.Param() + " characters"
		case "oneof":
			fields[field] = "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
		case "username":
			fields[field] = "may only contain letters, digits, hyphens and underscores"
		case "password":
			fields[field] = "must contain an upper-case letter, a lower-case letter and a digit"
		case "bcryptlen":
			fields[field] = "must be at most 72 bytes"
		default:
			fields[field] = "validation failed on " + e.Tag()
		}
	}

	return &domain.ValidationError{Fields: fields}
}
