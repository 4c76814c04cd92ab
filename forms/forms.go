// Package forms validates the sign-in and sign-up inputs shared by the web
// pages and the CLI.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate

	specialChars = regexp.MustCompile(`[@$!%*?&#^()_+=\-{}\[\]|:;"'<>,./]`)
	lowerChars   = regexp.MustCompile(`[a-z]`)
	upperChars   = regexp.MustCompile(`[A-Z]`)
	digitChars   = regexp.MustCompile(`[0-9]`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	if err := validate.RegisterValidation("password", validatePassword); err != nil {
		panic(err)
	}
}

// validatePassword requires one lowercase letter, one uppercase letter, one digit and one symbol
func validatePassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	return lowerChars.MatchString(pw) && upperChars.MatchString(pw) &&
		digitChars.MatchString(pw) && specialChars.MatchString(pw)
}

// LoginInput is the sign-in form
type LoginInput struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=6,max=20,password"`
}

// Normalize trims and lowercases the email
func (in *LoginInput) Normalize() {
	in.Email = normalizeEmail(in.Email)
}

// Validate normalizes in and checks every field
func (in *LoginInput) Validate() error {
	in.Normalize()
	return validateStruct(in)
}

// SignupInput is the registration form
type SignupInput struct {
	FirstName       string `form:"first_name" json:"first_name" validate:"min=3,max=50"`
	LastName        string `form:"last_name" json:"last_name" validate:"min=3,max=50"`
	Email           string `form:"email" json:"email" validate:"email"`
	Password        string `form:"password" json:"password" validate:"min=6,max=20,password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"eqfield=Password"`
}

// Normalize trims names and trims and lowercases the email
func (in *SignupInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
}

// Validate normalizes in and checks every field
func (in *SignupInput) Validate() error {
	in.Normalize()
	return validateStruct(in)
}

// Metadata returns the profile fields stored with the new user
func (in *SignupInput) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"full_name":  strings.TrimSpace(in.FirstName + " " + in.LastName),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FieldErrors maps form field names to the first message for that field
type FieldErrors struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *FieldErrors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// Get returns the message for field, or ""
func (e *FieldErrors) Get(field string) string {
	if e == nil {
		return ""
	}
	return e.Fields[field]
}

// NewFieldErrors creates a FieldErrors from validator.ValidationErrors
func NewFieldErrors(errs validator.ValidationErrors) *FieldErrors {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		if _, seen := fields[err.Field()]; seen {
			continue
		}
		fields[err.Field()] = message(err)
	}
	return &FieldErrors{
		Message: "Validation failed",
		Fields:  fields,
	}
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s required", err.StructField())
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("Min %s characters", err.Param())
	case "max":
		return fmt.Sprintf("Max %s characters", err.Param())
	case "password":
		return "Must include upper, lower, number & symbol"
	case "eqfield":
		return "Passwords do not match"
	default:
		return fmt.Sprintf("Invalid %s", err.Field())
	}
}

// IsFieldErrors checks if an error is a FieldErrors
func IsFieldErrors(err error) bool {
	var fieldErrs *FieldErrors
	return errors.As(err, &fieldErrs)
}

// Fields extracts field messages from a FieldErrors
func Fields(err error) map[string]string {
	var fieldErrs *FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Fields
	}
	return nil
}

func validateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewFieldErrors(validationErrors)
		}
		return err
	}
	return nil
}
