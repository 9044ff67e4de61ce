package descriptor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Report field paths with the persisted JSON names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterStructValidation(validateTextReferences, Descriptor{})
		validate = v
	})
	return validate
}

// validateTextReferences enforces that every text element points at an existing
// text variable.
func validateTextReferences(sl validator.StructLevel) {
	d := sl.Current().Interface().(Descriptor)
	for i, el := range d.Elements.TextElements {
		if el.ID == "" {
			continue
		}
		if _, ok := d.Variables.TextVariables[el.ID]; !ok {
			sl.ReportError(el.ID, fmt.Sprintf("elements.text_elements[%d].id", i), "ID", "textref", "")
		}
	}
}

// FieldError is one failed rule.
type FieldError struct {
	Field string // JSON path, e.g. subjects[0].position.bbox_norm[2]
	Rule  string // validator tag, e.g. lte
	Param string
	Value interface{}
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", f.Field, f.Rule, f.Param, f.Value)
	}
	return fmt.Sprintf("%s: failed %s (got %v)", f.Field, f.Rule, f.Value)
}

// ValidationError lists every rule a descriptor broke.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid reference descriptor: " + strings.Join(parts, "; ")
}

// Has reports whether field failed (any rule).
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Validate checks d against the schema. It does not apply defaults; callers
// decoding untrusted JSON should use Parse.
func Validate(d *Descriptor) error {
	if d == nil {
		return &ValidationError{Fields: []FieldError{{Field: "descriptor", Rule: "required"}}}
	}
	err := validatorInstance().Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate descriptor: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the root type name ("Descriptor.").
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out.Fields = append(out.Fields, FieldError{
			Field: field,
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
