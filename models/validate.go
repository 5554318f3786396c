package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks v against its `validate` tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// messages are keyed by "<Struct>.<field>.<tag>", then "<field>.<tag>".
var messages = map[string]string{
	"Tour.name.required":          "A tour must have a name",
	"Tour.name.max":               "A tour name must have less or equal then 40 characters",
	"Tour.name.min":               "A tour name must have more or equal then 10 characters",
	"Tour.duration.required":      "A tour must have a duration",
	"Tour.maxGroupSize.required":  "A tour must have a group size",
	"Tour.difficulty.required":    "A tour must have a difficulty",
	"Tour.difficulty.oneof":       "Difficulty is either: easy, medium, difficult",
	"Tour.ratingsAverage.gte":     "Rating must be above 1.0",
	"Tour.ratingsAverage.lte":     "Rating must be below 5.0",
	"Tour.price.required":         "A tour must have a price",
	"Tour.priceDiscount.ltfield":  "Discount price (%v) should be below regular price",
	"Tour.summary.required":       "A tour must have a description",
	"Tour.imageCover.required":    "A tour must have a cover image",
	"User.name.required":          "Please tell us your name!",
	"User.email.required":         "Please provide your email",
	"Review.review.required":      "Review can not be empty!",
	"Review.tour.required":        "Review must belong to a tour.",
	"Review.user.required":        "Review must belong to a user",
	"Booking.tour.required":       "Booking must belong to a Tour!",
	"Booking.user.required":       "Booking must belong to a User!",
	"Booking.price.required":      "Booking must have a price.",
	"email.email":                 "Please provide a valid email",
	"password.required":           "Please provide a password",
	"password.min":                "A password must have more or equal then 8 characters",
	"passwordConfirm.required":    "Please confirm your password",
	"passwordConfirm.eqfield":     "Passwords are not the same!",
	"passwordCurrent.required":    "Please provide your current password",
	"rating.gte":                  "Rating must be above 1.0",
	"rating.lte":                  "Rating must be below 5.0",
}

// ValidationMessages renders the failures in err as readable sentences. It
// returns nil when err is not a validation error.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.LastIndex(ns, "."); i >= 0 {
		if j := strings.LastIndex(ns[:i], "."); j >= 0 {
			ns = ns[j+1:]
		}
	}
	for _, key := range []string{ns + "." + fe.Tag(), fe.Field() + "." + fe.Tag()} {
		if msg, ok := messages[key]; ok {
			if strings.Contains(msg, "%v") {
				return fmt.Sprintf(msg, fe.Value())
			}
			return msg
		}
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please provide a valid email"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
