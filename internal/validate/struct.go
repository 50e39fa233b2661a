package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a field (by its json name) to a message fit for the user.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns f as an error, or nil when it holds nothing.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

var structs = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return rePhone.MatchString(fl.Field().String())
	})
	return v
}

var labels = map[string]string{
	"name":     "Name",
	"email":    "Email",
	"password": "Password",
	"role":     "Role",
	"shopName": "Shop name",
	"address":  "Address",
	"phone":    "Phone number",
	"author":   "Author",
	"stock":    "Stock",
	"image":    "Image",
}

func label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

func message(fe validator.FieldError) string {
	l := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return l + " is required"
	case "required_if":
		return l + " is required for sellers"
	case "email":
		return "Invalid email address"
	case "phone":
		return "Phone number must be 10 digits"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", l, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", l, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", l, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", l, fe.Param())
	}
	return l + " is invalid"
}

// Struct runs the `validate` tags on v. It returns nil when v is valid.
func Struct(v any) FieldErrors {
	err := structs.Struct(v)
	if err == nil {
		return nil
	}
	out := FieldErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("_", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}
