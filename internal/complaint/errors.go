package complaint

import (
	"complaintflow/backend/internal/storage"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is storage.ErrNotFound; callers test with errors.Is.
	ErrNotFound = storage.ErrNotFound
	// ErrDuplicate is storage.ErrDuplicate.
	ErrDuplicate = storage.ErrDuplicate
	// ErrTerminalStatus rejects executor updates for finished complaints.
	ErrTerminalStatus = errors.New("complaint is in a terminal status")
	// ErrInvalidCredentials is returned by moderator login.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError reports bad input. Nothing has been written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

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

// validateStruct runs the validate tags of v and reports the first failure.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return invalid(fe.Field(), reason)
	}
	return &ValidationError{Reason: err.Error()}
}
