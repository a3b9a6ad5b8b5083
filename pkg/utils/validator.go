package utils

import (
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// maxObjectKeyLength is the S3 limit on key size in bytes
const maxObjectKeyLength = 1024

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Custom validations
	v.RegisterValidation("object_key", validateObjectKey)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// Keys must be storable as-is in an S3 bucket
func validateObjectKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if key == "" || len(key) > maxObjectKeyLength || !utf8.ValidString(key) {
		return false
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
