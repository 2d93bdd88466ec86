package validator

import (
	"bookingsync/pkg/logger"
	"bookingsync/pkg/model"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phoneRegex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as field -> message for an API error body.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type IntentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewIntentValidator(log *logger.Logger) *IntentValidator {
	v := validator.New()

	if err := v.RegisterValidation("e164_or_empty", validateE164OrEmpty); err != nil {
		log.Fatal("Failed to register 'e164_or_empty' validator", "error", err)
	}

	return &IntentValidator{
		validate: v,
		logger:   log,
		now:      time.Now,
	}
}

func validateE164OrEmpty(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	return phone == "" || phoneRegex.MatchString(phone)
}

// Validate checks a booking request before it is queued. Stays that already
// ended are rejected; a stay that started earlier today is accepted since the
// intent may have been captured offline.
func (v *IntentValidator) Validate(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !req.CheckOut.After(v.now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "CheckOut",
				Message: "check_out cannot be in the past",
			},
		}
	}

	return nil
}

func (v *IntentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s cannot be negative", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "iso4217":
			message = fmt.Sprintf("%s must be an ISO 4217 currency code", err.Field())
		case "e164_or_empty":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +16502530000)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
