package validator

import "strings"

// ValidationErrors is the translated result of a failed validation.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError is a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error joins the translated messages.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return strings.Join(v.Messages(), "; ")
}

// Messages returns the translated messages in field order.
func (v *ValidationErrors) Messages() []string {
	if v == nil {
		return nil
	}
	messages := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		messages[i] = fe.Message
	}
	return messages
}

// First returns the first message, or "" when there is none.
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}
