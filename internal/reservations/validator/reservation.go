package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	reservationserrors "roombook/internal/reservations/errors"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/go-playground/validator/v10"
)

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

// Clock returns the current instant. Tests replace it to pin "today".
type Clock func() time.Time

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	loc      *time.Location
	now      Clock
}

func NewReservationValidator(log *logger.Logger, loc *time.Location, now Clock) *ReservationValidator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}

	v := validator.New()
	v.RegisterTagNameFunc(jsonTagName)

	log.Info("Reservation validator initialized successfully", "time_zone", loc.String())

	return &ReservationValidator{
		validate: v,
		logger:   log,
		loc:      loc,
		now:      now,
	}
}

// Validate checks the shape of a create request. Business rules that need
// the space or the clock are checked separately.
func (v *ReservationValidator) Validate(input *model.ReservationInput) error {
	return v.validateStruct(input)
}

func (v *ReservationValidator) ValidateUpdate(update *model.ReservationUpdate) error {
	return v.validateStruct(update)
}

// ValidateAttendance fails when count is not positive or exceeds capacity.
func (v *ReservationValidator) ValidateAttendance(count, capacity int) error {
	if count <= 0 {
		return apperrors.CapacityExceeded(
			"Attendee count must be at least 1",
			reservationserrors.ErrCapacityExceeded,
		)
	}
	if count > capacity {
		return apperrors.CapacityExceeded(
			fmt.Sprintf("Attendee count (%d) exceeds space capacity (%d)", count, capacity),
			reservationserrors.ErrCapacityExceeded,
		)
	}
	return nil
}

// ValidateNotPast fails when the calendar day of dateTime is before today.
// Time of day is ignored, so any hour of today is accepted.
func (v *ReservationValidator) ValidateNotPast(dateTime time.Time) error {
	day := v.DayOf(dateTime)
	today := v.Today()
	if day < today {
		return apperrors.PastDate(
			fmt.Sprintf("Reservation date %s is before today (%s)", day, today),
			reservationserrors.ErrPastDate,
		)
	}
	return nil
}

// DayOf returns the "YYYY-MM-DD" day key of t in the service time zone.
// The key sorts lexically in calendar order.
func (v *ReservationValidator) DayOf(t time.Time) string {
	return t.In(v.loc).Format(model.DateLayout)
}

func (v *ReservationValidator) Today() string {
	return v.DayOf(v.now())
}

func (v *ReservationValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			translated := v.translateValidationErrors(validationErrs)
			v.logger.Debug("Reservation input rejected", "error", translated.Error())
			return apperrors.Validation("Reservation validation failed", map[string]any{"errors": translated})
		}
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
