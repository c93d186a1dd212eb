package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/letsplay/tournament-hub/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Field names in errors follow the JSON names the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enums := map[string]func(string) bool{
		"game":                func(s string) bool { return models.Game(s).Valid() },
		"tournament_format":   func(s string) bool { return models.TournamentFormat(s).Valid() },
		"registration_status": func(s string) bool { return models.RegistrationStatus(s).Valid() },
		"organizer_role":      func(s string) bool { return models.OrganizerRole(s).Valid() },
		"applicant_status":    func(s string) bool { return models.ApplicantStatus(s).Valid() },
	}
	for tag, valid := range enums {
		valid := valid
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	return v
}

// validateStruct runs the `validate` tags of v and aggregates every failure.
func validateStruct(v interface{}) *ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("body", err.Error())
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), fieldMessage(fe))
	}
	return verr
}

// fieldPath drops the root struct name: "TournamentInput.prize_pool.total" -> "prize_pool.total".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at least %s items", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at most %s items", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "uppercase":
		return "must be uppercase"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "numeric":
		return "must contain only digits"
	case "unique":
		return "must not contain duplicates"
	case "game":
		return "must be one of: " + joinEnum(models.Games)
	case "tournament_format":
		return "must be one of: single_elimination, double_elimination, round_robin, swiss, custom"
	case "registration_status":
		return "must be one of: open, closed, full"
	case "organizer_role":
		return "must be one of: admin, moderator, observer"
	case "applicant_status":
		return "must be one of: Pending, Approved, Rejected"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
