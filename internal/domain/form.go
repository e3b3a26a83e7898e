package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldKind is the closed set of input kinds an application form can use.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextarea FieldKind = "textarea"
	FieldSelect   FieldKind = "select"
	FieldCheckbox FieldKind = "checkbox"
	FieldDate     FieldKind = "date"
	FieldEmail    FieldKind = "email"
	FieldNumber   FieldKind = "number"
)

// IsValid reports whether the kind is one of the known field kinds.
func (k FieldKind) IsValid() bool {
	switch k {
	case FieldText, FieldTextarea, FieldSelect, FieldCheckbox, FieldDate, FieldEmail, FieldNumber:
		return true
	}
	return false
}

// dateLayout is the wire format for date fields.
const dateLayout = "2006-01-02"

// FormField is a single entry in an application form definition.
type FormField struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// Validate checks a submitted value against the field definition.
func (f *FormField) Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		if f.Required {
			return fmt.Errorf("%s is required", f.label())
		}
		return nil
	}

	switch f.Kind {
	case FieldText, FieldTextarea:
		return nil
	case FieldSelect:
		for _, opt := range f.Options {
			if value == opt {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of: %s", f.label(), strings.Join(f.Options, ", "))
	case FieldCheckbox:
		checked, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", f.label())
		}
		if f.Required && !checked {
			return fmt.Errorf("%s must be checked", f.label())
		}
		return nil
	case FieldDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fmt.Errorf("%s must be a date in YYYY-MM-DD format", f.label())
		}
		return nil
	case FieldEmail:
		if !strings.Contains(value, "@") {
			return fmt.Errorf("%s must be a valid email address", f.label())
		}
		return nil
	case FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%s must be a number", f.label())
		}
		return nil
	default:
		return fmt.Errorf("%s has unknown field type %q", f.label(), f.Kind)
	}
}

func (f *FormField) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// ApplicationForm is the ordered form definition an applicant fills in.
// Exactly one form applies to a plan; definitions are never merged.
type ApplicationForm struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title,omitempty"`
	Fields    []FormField `json:"fields"`
	Terms     string      `json:"terms,omitempty"`
	Agreement string      `json:"agreement,omitempty"`
	Footer    string      `json:"footer,omitempty"`
}

// HasTerms reports whether the form requires an explicit agreement.
func (f *ApplicationForm) HasTerms() bool {
	return f.Terms != ""
}

// FieldError is a field-scoped validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// ValidationErrors aggregates field-scoped failures. It blocks submission
// but is never terminal; the caller keeps the form state for correction.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks all submitted values against the form definition and,
// when the form carries terms, that the agreement box was checked.
func (f *ApplicationForm) Validate(values map[string]string, agreed bool) error {
	var errs ValidationErrors
	for i := range f.Fields {
		field := &f.Fields[i]
		if err := field.Validate(values[field.Name]); err != nil {
			errs = append(errs, FieldError{Field: field.Name, Message: err.Error()})
		}
	}
	if f.HasTerms() && !agreed {
		errs = append(errs, FieldError{Field: "terms", Message: "you must agree to the terms before submitting"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
