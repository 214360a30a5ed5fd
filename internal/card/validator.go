package card

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Validator checks card input structs tagged with `cardnumber`, `cardexpiry`
// and `cvv` in addition to the stock validator tags.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	val := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), now: now}
	val.v.RegisterTagNameFunc(jsonName)
	_ = val.v.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
		_, err := NormalizeNumber(fl.Field().String())
		return err == nil
	})
	_ = val.v.RegisterValidation("cardexpiry", func(fl validator.FieldLevel) bool {
		_, _, err := ParseExpiry(fl.Field().String())
		return err == nil && !IsExpired(fl.Field().String(), val.now())
	})
	_ = val.v.RegisterValidation("cvv", func(fl validator.FieldLevel) bool {
		return ValidateCVV(fl.Field().String()) == nil
	})
	return val
}

// Struct validates s and reports failures as domain.FieldErrors.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := domain.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), message(fe))
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "cardnumber":
		return "card number must be exactly 16 digits"
	case "cardexpiry":
		return "expiry must be a future MM/YY date"
	case "cvv":
		return "security code must be 3 or 4 digits"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
