package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var platformTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{1,31}$`)

// RequestValidator is the gin struct validator with the request-specific tags registered.
type RequestValidator struct {
	once     sync.Once
	validate *validator.Validate
}

var _ binding.StructValidator = &RequestValidator{}

// UseRequestValidator installs RequestValidator as gin's binding validator.
func UseRequestValidator() {
	binding.Validator = &RequestValidator{}
}

// ValidateStruct validates struct fields against their binding tags.
func (v *RequestValidator) ValidateStruct(obj any) error {
	if kindOfData(obj) != reflect.Struct {
		return nil
	}
	v.lazyinit()
	return v.validate.Struct(obj)
}

// Engine returns the underlying validator engine.
func (v *RequestValidator) Engine() any {
	v.lazyinit()
	return v.validate
}

func (v *RequestValidator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New()
		v.validate.SetTagName("binding")
		v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		_ = v.validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.validate.RegisterValidation("platformtype", func(fl validator.FieldLevel) bool {
			return platformTypePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	})
}

func kindOfData(data any) reflect.Kind {
	value := reflect.ValueOf(data)
	kind := value.Kind()
	if kind == reflect.Ptr {
		kind = value.Elem().Kind()
	}
	return kind
}

// bindingErrorMessage turns a bind failure into a client-facing message naming the first bad field.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid url", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
