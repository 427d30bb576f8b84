/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation validates values and structs supplied by clients and
// renders violations as readable English messages.
package validation

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const (
	// documentKeyRegexString accepts RFC 3986 unreserved characters plus ':'
	// and '/', so keys like "workspace/notes:42" work.
	documentKeyRegexString = `^[a-zA-Z0-9\-._~:/]+$`

	// participantIDRegexString accepts unreserved characters plus '@'.
	participantIDRegexString = `^[a-zA-Z0-9\-._~@]+$`
)

var (
	documentKeyRegex   = regexp.MustCompile(documentKeyRegexString)
	participantIDRegex = regexp.MustCompile(participantIDRegexString)
)

var (
	defaultValidator = validator.New()
	defaultEn        = en.New()
	uni              = ut.New(defaultEn, defaultEn)
	trans, _         = uni.GetTranslator(defaultEn.Locale())
)

// FieldLevel is the argument of a custom rule.
type FieldLevel = validator.FieldLevel

// CustomRuleFunc checks one field.
type CustomRuleFunc = validator.Func

// Violation describes one failed rule.
type Violation struct {
	Tag         string
	Field       string
	Err         error
	Description string
}

// Error returns the translated description, falling back to the raw error.
func (v Violation) Error() string {
	if v.Description != "" {
		return v.Description
	}
	return v.Err.Error()
}

// StructError collects the violations of one struct.
type StructError struct {
	Violations []Violation
}

// Error joins the violations, one per line.
func (s StructError) Error() string {
	sb := strings.Builder{}
	for _, v := range s.Violations {
		sb.WriteString(v.Error())
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// RegisterValidation registers fn under tag. Packages that own a domain type
// call it from init to add rules such as "op_kind".
func RegisterValidation(tag string, fn CustomRuleFunc) error {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register validation %s: %w", tag, err)
	}
	return nil
}

// RegisterTranslation registers the English message for tag. {0} is the
// field name.
func RegisterTranslation(tag, msg string) error {
	if err := defaultValidator.RegisterTranslation(
		tag,
		trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	); err != nil {
		return fmt.Errorf("register translation %s: %w", tag, err)
	}
	return nil
}

// ValidateValue validates v against a comma separated tag list.
func ValidateValue(v interface{}, tag string) error {
	err := defaultValidator.Var(v, tag)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	return Violation{
		Tag:         errs[0].Tag(),
		Err:         errs[0],
		Description: errs[0].Translate(trans),
	}
}

// ValidateStruct validates the `validate` tags of s.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	structError := &StructError{}
	for _, e := range errs {
		structError.Violations = append(structError.Violations, Violation{
			Tag:         e.Tag(),
			Field:       e.StructField(),
			Err:         e,
			Description: e.Translate(trans),
		})
	}
	return structError
}

func mustRegister(tag, msg string, fn CustomRuleFunc) {
	if err := RegisterValidation(tag, fn); err != nil {
		fmt.Fprintf(os.Stderr, "validation %s: %v\n", tag, err)
		os.Exit(1)
	}
	if err := RegisterTranslation(tag, msg); err != nil {
		fmt.Fprintf(os.Stderr, "validation %s: %v\n", tag, err)
		os.Exit(1)
	}
}

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		fmt.Fprintf(os.Stderr, "validation register default translations: %v\n", err)
		os.Exit(1)
	}

	mustRegister(
		"document_key",
		"{0} must only contain letters, numbers, hyphen, period, underscore, tilde, colon and slash",
		func(level validator.FieldLevel) bool {
			return documentKeyRegex.MatchString(level.Field().String())
		},
	)

	mustRegister(
		"participant_id",
		"{0} must only contain letters, numbers, hyphen, period, underscore, tilde and at sign",
		func(level validator.FieldLevel) bool {
			return participantIDRegex.MatchString(level.Field().String())
		},
	)

	mustRegister(
		"duration",
		"{0} must be a valid duration such as 30s or 1m30s",
		func(level validator.FieldLevel) bool {
			_, err := time.ParseDuration(level.Field().String())
			return err == nil
		},
	)
}
