package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"bloomcart-be/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return TimeSlot(fl.Field().String()).Valid()
	})
	return v
}

// ValidateDeliveryStep checks the customer block entered at the first step.
// It is pure and never contacts external services.
func ValidateDeliveryStep(customer CustomerInfo, mode DeliveryMode) apperr.FieldErrors {
	fields := apperr.FieldErrors{}
	collect("customer", validate.Struct(customer.normalized()), fields)
	if !mode.Valid() {
		fields.Add("deliveryMode", "must be one of: pickup delivery third_party")
	}
	return fields
}

// ValidateAddressStep checks the delivery block for the selected mode. today
// is the shop's current date; delivery dates before it are rejected.
func ValidateAddressStep(delivery DeliveryInfo, mode DeliveryMode, today time.Time) apperr.FieldErrors {
	fields := apperr.FieldErrors{}

	d := delivery
	d.Mode = mode
	d = d.Normalize()

	collect("delivery", validate.Struct(d), fields)

	if _, bad := fields["delivery.date"]; !bad && d.Date < today.Format(DateLayout) {
		fields.Add("delivery.date", "must not be in the past")
	}
	return fields
}

func collect(prefix string, err error, into apperr.FieldErrors) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		into.Add(prefix, err.Error())
		return
	}
	for _, fe := range verrs {
		into.Add(prefix+"."+fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "timeslot":
		return "must be one of the delivery windows"
	}
	return "is invalid"
}
