package validator

import (
	"errors"
	"fmt"
	"strings"

	"go-inventory-tree/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ErrorResponse struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       string `json:"param,omitempty"`
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})
	// entity type codes are used in URLs and JSON lists
	validate.RegisterValidation("type_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return false
		}
		for _, r := range code {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
				return false
			}
		}
		return true
	})
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var out []*ErrorResponse
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*ErrorResponse{{FailedField: "", Tag: err.Error()}}
	}
	for _, fe := range verrs {
		out = append(out, &ErrorResponse{
			FailedField: fe.StructNamespace(),
			Tag:         fe.Tag(),
			Value:       fe.Param(),
		})
	}
	return out
}

// Validate runs ValidateStruct and folds failures into one validation error
// naming the first offending field.
func Validate(data interface{}) error {
	errs := ValidateStruct(data)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	field := first.FailedField
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return apperror.Validation(apperror.CodeInvalidInput,
		fmt.Sprintf("validation failed: field '%s' failed on '%s'", field, first.Tag)).
		WithParams(map[string]interface{}{"field": field, "tag": first.Tag, "errors": errs})
}
