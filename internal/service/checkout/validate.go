package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"storefront/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// normalizeContact trims every field and checks the minimum lengths.
func normalizeContact(v *validator.Validate, in domain.Contact) (domain.Contact, error) {
	c := domain.Contact{
		CustomerName: strings.TrimSpace(in.CustomerName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
	}
	err := v.Struct(c)
	if err == nil {
		return c, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Contact{}, err
	}
	ve := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			ve.Fields[fe.Field()] = "is required"
		case "min":
			ve.Fields[fe.Field()] = fmt.Sprintf("must be at least %s characters", fe.Param())
		default:
			ve.Fields[fe.Field()] = "is invalid"
		}
	}
	return domain.Contact{}, ve
}
