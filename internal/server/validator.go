package server

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/labloom/internal/validation"
)

func newValidator() (*validation.Validator, error) {
	return validation.New("json",
		validation.Rule{Tag: "previewurl", Func: isPreviewURL, Message: "{0} must be an http(s) or data URL"},
		validation.Rule{Tag: "dataurl", Func: isDataURL, Message: "{0} must be a data URL"},
	)
}

func isPreviewURL(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if strings.HasPrefix(value, "data:") {
		return true
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func isDataURL(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "data:")
}
