package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

// Validator checks `validate` struct tags and reports failures as a
// validation AppError listing the JSON names of every offending field.
type Validator interface {
	Validate(obj interface{}) error
}

type playground struct {
	v *validator.Validate
}

var (
	once     sync.Once
	instance *playground
)

// New returns the shared validator.
func New() Validator {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		instance = &playground{v: v}
	})
	return instance
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func (p *playground) Validate(obj interface{}) error {
	err := p.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewBadRequest("invalid input", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(invalid) == 0 {
		return apperrors.MissingFields(missing...)
	}
	fields := append(missing, invalid...)
	return apperrors.NewValidation("invalid fields: "+strings.Join(fields, ", "), fields...)
}
