// Package validation builds go-playground validators with English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// Rule is a custom validation tag with its English message. The message
// may refer to the field name as {0}.
type Rule struct {
	Tag     string
	Func    validator.Func
	Message string
}

// Validator validates structs and reports failures as English messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New creates a Validator. Field names in messages are taken from the
// given struct tag (for example "json" or "mapstructure").
func New(nameTag string, rules ...Rule) (*Validator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get(nameTag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	for _, rule := range rules {
		if err := validate.RegisterValidation(rule.Tag, rule.Func); err != nil {
			return nil, fmt.Errorf("failed to register %s validation: %w", rule.Tag, err)
		}
		message := rule.Message
		if err := validate.RegisterTranslation(rule.Tag, trans, func(ut ut.Translator) error {
			return ut.Add(rule.Tag, message, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(fe.Tag(), fe.Field())
			return t
		}); err != nil {
			return nil, fmt.Errorf("failed to register %s translation: %w", rule.Tag, err)
		}
	}

	return &Validator{validate: validate, translator: trans}, nil
}

// Struct validates s. A failure is returned as a single error joining the
// English message of every invalid field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	return &Error{Messages: v.Messages(validationErrors)}
}

// Messages translates each field error.
func (v *Validator) Messages(errs validator.ValidationErrors) []string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Translate(v.translator))
	}
	return messages
}

// Error lists the messages of a failed validation.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, ", ")
}
