package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/go-playground/validator/v10"
)

// ErrValidation marks a request body that failed validation.
var ErrValidation = errors.New("validation failed")

// Validator validates request bodies by struct tag.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the "clock" rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := itinerary.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("budget", func(fl validator.FieldLevel) bool {
		return itinerary.Budget(fl.Field().String()).IsValid()
	})

	return &Validator{validate: v}
}

// Validate checks i and returns an ErrValidation listing every failed field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "clock":
		return fe.Field() + " must be HH:MM (24h)"
	case "budget":
		return fe.Field() + " must be ECONOMY, MODERATE or LUXURY"
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
