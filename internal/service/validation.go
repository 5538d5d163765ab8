package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"charterly/internal/domain"

	"github.com/go-playground/validator/v10"
)

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// toValidationError converts validator output into a field map.
func toValidationError(err error) *domain.ValidationError {
	out := &domain.ValidationError{}

	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		out.Add("request", err.Error())
		return out
	}
	for _, ferr := range verr {
		out.Add(ferr.Field(), msgForTag(ferr.Tag(), ferr.Param()))
	}
	return out
}

func msgForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return fmt.Sprintf("must match layout %s", param)
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "gte":
		return fmt.Sprintf("must be at least %s", param)
	case "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "max":
		return fmt.Sprintf("must be at most %s characters", param)
	case "len":
		return fmt.Sprintf("must be exactly %s characters", param)
	case "alpha":
		return "must contain letters only"
	}
	return tag
}
