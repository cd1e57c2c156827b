package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var hhmm = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	})
	return v
}

// CreateInput is what an owner supplies to book an appointment. The owner
// itself always comes from the caller.
type CreateInput struct {
	DoctorID        uuid.UUID       `json:"doctor_id" validate:"required"`
	PetID           uuid.UUID       `json:"pet_id" validate:"required"`
	AppointmentDate string          `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	AppointmentTime string          `json:"appointment_time" validate:"required,hhmm"`
	AppointmentType AppointmentType `json:"appointment_type" validate:"required,oneof=HomeVisit VideoCall OnClinic"`
	Charges         *float64        `json:"charges" validate:"required,gte=0"`
}

type RescheduleInput struct {
	AppointmentDate string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	AppointmentTime string `json:"appointment_time" validate:"required,hhmm"`
}

type CompleteInput struct {
	Diagnosis     string `json:"diagnosis" validate:"required,max=4000"`
	Treatment     string `json:"treatment" validate:"max=4000"`
	Prescriptions string `json:"prescriptions" validate:"max=4000"`
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "hhmm":
		return "must be a 24-hour time formatted HH:mm"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}

// ParseStatus accepts only the five persisted statuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", invalidField("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, invalidField("appointment_date", "must be a date formatted YYYY-MM-DD")
	}
	return t, nil
}
