// Package validation normalizes and checks raw registration submissions.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/astro-comp/registrar/internal/models"
)

// FieldError is a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the full list of violations found in one pass.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the names of the violated fields in report order.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Field)
	}
	return out
}

// submission is the normalized candidate the rule set runs against.
type submission struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	StudentEmail string `json:"studentEmail" validate:"required,email"`
	ParentEmail  string `json:"parentEmail" validate:"required,email"`
	School       string `json:"school" validate:"required,min=2,max=200"`
	Grade        *int   `json:"grade" validate:"required,min=9,max=12"`
	Age          *int   `json:"age" validate:"required,min=13,max=19"`
	Country      string `json:"country" validate:"required,min=2,max=100"`
	Experience   string `json:"experience" validate:"max=1000"`
	Motivation   string `json:"motivation" validate:"max=1000"`
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindEmail
	kindInt
)

type rule struct {
	field    string
	label    string
	kind     fieldKind
	messages map[string]string // validator tag -> message
}

// rules is in report order; unknown input keys are ignored.
var rules = []rule{
	{field: "name", label: "Name", kind: kindString, messages: map[string]string{
		"required": "Name is required",
		"min":      "Name must be at least 2 characters long",
		"max":      "Name cannot exceed 100 characters",
	}},
	{field: "studentEmail", label: "Student email", kind: kindEmail, messages: map[string]string{
		"required": "Student email is required",
		"email":    "Please provide a valid email address",
	}},
	{field: "parentEmail", label: "Parent/guardian email", kind: kindEmail, messages: map[string]string{
		"required": "Parent/guardian email is required",
		"email":    "Please provide a valid parent/guardian email address",
	}},
	{field: "school", label: "School name", kind: kindString, messages: map[string]string{
		"required": "School name is required",
		"min":      "School name must be at least 2 characters long",
		"max":      "School name cannot exceed 200 characters",
	}},
	{field: "grade", label: "Grade", kind: kindInt, messages: map[string]string{
		"required": "Grade is required",
		"min":      "Grade must be between 9 and 12",
		"max":      "Grade must be between 9 and 12",
	}},
	{field: "age", label: "Age", kind: kindInt, messages: map[string]string{
		"required": "Age is required",
		"min":      "Age must be between 13 and 19",
		"max":      "Age must be between 13 and 19",
	}},
	{field: "country", label: "Country", kind: kindString, messages: map[string]string{
		"required": "Country is required",
		"min":      "Country name must be at least 2 characters long",
		"max":      "Country name cannot exceed 100 characters",
	}},
	{field: "experience", label: "Experience", kind: kindString, messages: map[string]string{
		"max": "Experience description cannot exceed 1000 characters",
	}},
	{field: "motivation", label: "Motivation", kind: kindString, messages: map[string]string{
		"max": "Motivation description cannot exceed 1000 characters",
	}},
}

// Validator runs the registration rule set. Safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator reporting fields by their JSON names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate coerces input into a normalized registration candidate. Every violated
// rule is reported; the candidate is nil whenever errs is non-empty.
func (v *Validator) Validate(input map[string]any) (*models.Registration, Errors) {
	var sub submission
	coerceErrs := make(map[string]string)

	for _, r := range rules {
		raw, present := input[r.field]
		if !present || raw == nil {
			continue
		}
		switch r.kind {
		case kindString, kindEmail:
			s, ok := raw.(string)
			if !ok {
				coerceErrs[r.field] = r.label + " must be a string"
				continue
			}
			s = strings.TrimSpace(s)
			if r.kind == kindEmail {
				s = strings.ToLower(s)
			}
			setString(&sub, r.field, s)
		case kindInt:
			n, msg := coerceInt(raw, r.label)
			if msg != "" {
				coerceErrs[r.field] = msg
				continue
			}
			if n != nil {
				setInt(&sub, r.field, *n)
			}
		}
	}

	ruleErrs := make(map[string]string)
	if err := v.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, Errors{{Field: "_", Message: err.Error()}}
		}
		for _, fe := range verrs {
			if _, seen := ruleErrs[fe.Field()]; seen {
				continue
			}
			ruleErrs[fe.Field()] = messageFor(fe.Field(), fe.Tag())
		}
	}

	var errs Errors
	for _, r := range rules {
		if msg, ok := coerceErrs[r.field]; ok {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
			continue
		}
		if msg, ok := ruleErrs[r.field]; ok {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return &models.Registration{
		Name:         sub.Name,
		StudentEmail: sub.StudentEmail,
		ParentEmail:  sub.ParentEmail,
		School:       sub.School,
		Grade:        *sub.Grade,
		Age:          *sub.Age,
		Country:      sub.Country,
		Experience:   sub.Experience,
		Motivation:   sub.Motivation,
	}, nil
}

// NormalizeEmail is the dedup-key normalization applied to student emails.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func messageFor(field, tag string) string {
	for _, r := range rules {
		if r.field != field {
			continue
		}
		if msg, ok := r.messages[tag]; ok {
			return msg
		}
		return fmt.Sprintf("%s is invalid", r.label)
	}
	return fmt.Sprintf("%s is invalid", field)
}

// coerceInt accepts JSON numbers, Go integers and numeric-looking strings.
// A nil result with an empty message means "absent".
func coerceInt(raw any, label string) (*int, string) {
	var f float64
	switch x := raw.(type) {
	case int:
		return &x, ""
	case int64:
		n := int(x)
		return &n, ""
	case int32:
		n := int(x)
		return &n, ""
	case float64:
		f = x
	case float32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, label + " must be a number"
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, ""
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, label + " must be a number"
		}
		f = parsed
	default:
		return nil, label + " must be a number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, label + " must be a number"
	}
	if f != math.Trunc(f) {
		return nil, label + " must be a whole number"
	}
	n := int(f)
	return &n, ""
}

func setString(s *submission, field, value string) {
	switch field {
	case "name":
		s.Name = value
	case "studentEmail":
		s.StudentEmail = value
	case "parentEmail":
		s.ParentEmail = value
	case "school":
		s.School = value
	case "country":
		s.Country = value
	case "experience":
		s.Experience = value
	case "motivation":
		s.Motivation = value
	}
}

func setInt(s *submission, field string, value int) {
	switch field {
	case "grade":
		s.Grade = &value
	case "age":
		s.Age = &value
	}
}
