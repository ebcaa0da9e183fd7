package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/go-playground/validator/v10"
)

const clockLayout = "15:04"

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Validator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewValidator(log *logger.Logger) *Validator {
	v := validator.New()

	if err := v.RegisterValidation("hhmm", validateClock); err != nil {
		log.Fatal("Failed to register 'hhmm' validator", "error", err)
	}
	v.RegisterStructValidation(validateSpaceComputers, model.Space{})
	v.RegisterStructValidation(validateSlotRange, model.Slot{})

	return &Validator{
		validate: v,
		logger:   log,
	}
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := time.Parse(clockLayout, strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// validateSpaceComputers enforces that a computer count is present and
// positive exactly when the space has computers.
func validateSpaceComputers(sl validator.StructLevel) {
	space := sl.Current().Interface().(model.Space)
	hasCount := space.ComputerCount != nil && *space.ComputerCount > 0

	if space.HasComputers && !hasCount {
		sl.ReportError(space.ComputerCount, "ComputerCount", "ComputerCount", "required_with_computers", "")
	}
	if !space.HasComputers && hasCount {
		sl.ReportError(space.ComputerCount, "ComputerCount", "ComputerCount", "excluded_without_computers", "")
	}
}

func validateSlotRange(sl validator.StructLevel) {
	slot := sl.Current().Interface().(model.Slot)
	start, errStart := time.Parse(clockLayout, slot.StartTime)
	end, errEnd := time.Parse(clockLayout, slot.EndTime)
	if errStart != nil || errEnd != nil {
		return
	}
	if !end.After(start) {
		sl.ReportError(slot.EndTime, "EndTime", "EndTime", "after_start", "")
	}
}

func (v *Validator) ValidateSpace(space *model.Space) error {
	return v.check(space)
}

func (v *Validator) ValidateSlot(slot *model.Slot) error {
	return v.check(slot)
}

// ValidateAccount checks an account before it is seeded. Roles must name
// at least one known role.
func (v *Validator) ValidateAccount(account *model.Account) error {
	return v.check(account)
}

func (v *Validator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.InvalidInput(err.Error())
	}

	details := make([]ValidationError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		details = append(details, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return apperrors.Validation("Catalog entry is invalid", map[string]any{"errors": details})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "hhmm":
		return fmt.Sprintf("%s must be a time in HH:MM format", fe.Field())
	case "required_with_computers":
		return "computer_count must be positive when has_computers is true"
	case "excluded_without_computers":
		return "computer_count must be absent or zero when has_computers is false"
	case "after_start":
		return "end_time must be after start_time"
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	}
	return fe.Error()
}
