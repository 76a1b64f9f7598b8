// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package validation wraps go-playground/validator behind a process-wide
// instance and rewrites its field errors into messages fit for API
// responses.
//
// Request structs declare their rules with `validate` struct tags:
//
//	type ForceAssignmentRequest struct {
//		UserID       string `validate:"required,min=1,max=128"`
//		ExperimentID string `validate:"required,min=1,max=128"`
//		VariantID    string `validate:"required,min=1,max=64"`
//	}
//
// ValidateStruct returns nil when every rule passes. On failure the result
// converts to the HTTP error payload with ToAPIError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CodeValidationError is the machine-readable code carried by every
// validation failure payload.
const CodeValidationError = "VALIDATION_ERROR"

var (
	shared *validator.Validate
	once   sync.Once
)

// GetValidator returns the process-wide validator. The instance caches
// parsed struct tags, so sharing one across goroutines is both safe and
// cheaper than constructing a fresh validator per request. The stock rule
// set (required, min, max, oneof, base64url) covers every tag the request
// structs use, so no custom rules are registered.
func GetValidator() *validator.Validate {
	once.Do(func() {
		shared = validator.New(validator.WithRequiredStructEnabled())
	})
	return shared
}

// FieldError describes one failed rule on one struct field.
type FieldError struct {
	// Field is the struct field name as declared, e.g. "UserID".
	Field string
	// Rule is the validate tag that rejected the value, e.g. "max".
	Rule string
	// Param is the rule's argument, e.g. "128" for max=128.
	Param string
	// Message is the human-readable description of the failure.
	Message string
}

// RequestValidationError collects every failed rule from a single
// ValidateStruct call. It implements error.
type RequestValidationError struct {
	Fields []FieldError
}

// Error joins the per-field messages into one line.
func (e *RequestValidationError) Error() string {
	switch len(e.Fields) {
	case 0:
		return "request validation failed"
	case 1:
		return e.Fields[0].Message
	}

	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError mirrors the api package's error payload. Declaring it here keeps
// the api package free to depend on validation without a cycle.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError shapes the failure for an HTTP response. A single failed field
// gets a flat details object; multiple failures nest under "fields".
func (e *RequestValidationError) ToAPIError() *APIError {
	out := &APIError{Code: CodeValidationError, Message: e.Error()}

	switch len(e.Fields) {
	case 0:
	case 1:
		f := e.Fields[0]
		out.Details = map[string]interface{}{
			"field": f.Field,
			"rule":  f.Rule,
		}
	default:
		fields := make([]map[string]string, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]string{
				"field":   f.Field,
				"rule":    f.Rule,
				"message": f.Message,
			}
		}
		out.Details = map[string]interface{}{"fields": fields}
	}

	return out
}

// ValidateStruct runs the shared validator over s and returns nil when it
// passes. The typed nil-able return lets handlers branch without errors.As.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// The validator rejects non-struct arguments with
		// InvalidValidationError. Surface it rather than panic.
		return &RequestValidationError{Fields: []FieldError{{
			Field:   "request",
			Rule:    "struct",
			Message: err.Error(),
		}}}
	}

	result := &RequestValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		result.Fields = append(result.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: messageFor(fe),
		})
	}
	return result
}

// messageFor renders a validator.FieldError as a sentence fragment suitable
// for returning to API callers.
func messageFor(fe validator.FieldError) string {
	name := fe.Field()

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", name, fe.Param(), lengthUnit(fe))
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", name, fe.Param(), lengthUnit(fe))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "base64url":
		return name + " must be base64url encoded"
	case "uuid":
		return name + " must be a valid UUID"
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

// lengthUnit returns " characters" for string fields so min/max read as
// length limits rather than numeric bounds.
func lengthUnit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return " characters"
	}
	return ""
}
