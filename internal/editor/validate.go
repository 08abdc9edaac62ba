package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var rules = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("modulename", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return name != "" && name != PlaceholderModule
	})
	return v
}

type headerRules struct {
	Domain       string `validate:"notblank"`
	CustomerName string `validate:"notblank"`
}

type moduleRules struct {
	Module        string `validate:"modulename"`
	NumberOfUsers int    `validate:"gte=1"`
	StartDate     string `validate:"notblank"`
	EndDate       string `validate:"notblank"`
}

var headerMessages = map[string]string{
	"Domain":       "Domain is required",
	"CustomerName": "Customer name is required",
}

var moduleMessages = map[string]string{
	"Module":        "Module name is required for row %d",
	"NumberOfUsers": "Number of users must be at least 1 for row %d",
	"StartDate":     "Start date is required for row %d",
	"EndDate":       "End date is required for row %d",
}

// ValidationError lists every reason a license cannot be saved.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validate returns human readable problems with the working copy, header
// first and then modules by 1-based row. It returns nil when valid.
func (s *State) Validate() []string {
	var msgs []string
	msgs = append(msgs, fieldMessages(rules.Struct(headerRules{
		Domain:       s.header.Domain,
		CustomerName: s.header.CustomerName,
	}), func(field string) string { return headerMessages[field] })...)

	if s.policy.RequireSerial && (s.header.SerialNumber == nil || *s.header.SerialNumber <= 0) {
		msgs = append(msgs, "Serial number must be positive")
	}
	if len(s.modules) < s.policy.minModules() {
		msgs = append(msgs, "At least one module is required")
	}

	for i, m := range s.modules {
		row := i + 1
		msgs = append(msgs, fieldMessages(rules.Struct(moduleRules{
			Module:        m.Module,
			NumberOfUsers: m.NumberOfUsers,
			StartDate:     m.StartDate,
			EndDate:       m.EndDate,
		}), func(field string) string { return fmt.Sprintf(moduleMessages[field], row) })...)

		start, okStart := parseDate(m.StartDate)
		end, okEnd := parseDate(m.EndDate)
		if okStart && okEnd && end.Before(start) {
			msgs = append(msgs, fmt.Sprintf("End date must not be before start date for row %d", row))
		}
	}
	return msgs
}

// ValidationErr wraps Validate in an error, or returns nil.
func (s *State) ValidationErr() error {
	if msgs := s.Validate(); len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func fieldMessages(err error, message func(field string) string) []string {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, message(fe.StructField()))
	}
	return out
}
