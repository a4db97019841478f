package catalog

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request parameter.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is returned for malformed listing parameters. It is the client's
// fault and is never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, strings.Join(f.Loc, ".")+": "+f.Msg)
	}

	return "invalid parameters: " + strings.Join(msgs, "; ")
}

// NewFieldError builds a ValidationError for a single query parameter.
func NewFieldError(param, msg, typ string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Loc: []string{"query", param}, Msg: msg, Type: typ}}}
}

func newValidator() *validator.Validate {
	v := validator.New()

	// report query parameter names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToLower(f.Name)
	})

	return v
}

func fromValidator(errs validator.ValidationErrors) *ValidationError {
	ret := &ValidationError{Fields: make([]FieldError, 0, len(errs))}

	for _, fe := range errs {
		var msg, typ string
		switch fe.Tag() {
		case "gte":
			msg = "Input should be greater than or equal to " + fe.Param()
			typ = "greater_than_equal"
		default:
			msg = "Invalid value"
			typ = fe.Tag()
		}

		ret.Fields = append(ret.Fields, FieldError{
			Loc:  []string{"query", fe.Field()},
			Msg:  msg,
			Type: typ,
		})
	}

	return ret
}
