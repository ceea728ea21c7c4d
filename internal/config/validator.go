package config

import (
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/labloom/internal/validation"
)

func newValidator() (*validation.Validator, error) {
	return validation.New("mapstructure", validation.Rule{
		Tag:     "file",
		Func:    isFileReadable,
		Message: "{0} must be an existing and readable file",
	})
}

func isFileReadable(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	// Owner read permission.
	return info.Mode().Perm()&0400 != 0
}
