/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
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
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	defaultValidator = validator.New()

	defaultEn = en.New()
	uni       = ut.New(defaultEn, defaultEn)

	// trans renders field errors in English for API clients.
	trans, _ = uni.GetTranslator(defaultEn.Locale())
)

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		panic(err)
	}
}

// Violation is a single failed rule of a validated value.
type Violation struct {
	Tag         string
	Field       string
	Err         error
	Description string
}

// Error returns the translated description.
func (v Violation) Error() string {
	return v.Description
}

// Unwrap returns the underlying validator error.
func (v Violation) Unwrap() error {
	return v.Err
}

// StructError is returned when a struct fails validation.
type StructError struct {
	Violations []Violation
}

// Error returns the descriptions of every violation.
func (s StructError) Error() string {
	descs := make([]string, 0, len(s.Violations))
	for _, v := range s.Violations {
		descs = append(descs, v.Error())
	}
	return strings.Join(descs, "; ")
}

// registerValidation registers a custom validation tag with its English
// message. It is called from init functions, so a failure is a programming
// error.
func registerValidation(tag, msg string, fn validator.Func) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}

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
		panic(err)
	}
}

// ValidateStruct validates the struct against its validate tags.
func ValidateStruct(s interface{}) error {
	return translate(defaultValidator.Struct(s))
}

// ValidateValue validates a single value against the given tags.
func ValidateValue(v interface{}, tag string) error {
	return translate(defaultValidator.Var(v, tag))
}

func translate(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	structErr := StructError{}
	for _, fe := range fieldErrs {
		structErr.Violations = append(structErr.Violations, Violation{
			Tag:         fe.Tag(),
			Field:       fe.Field(),
			Err:         fe,
			Description: fe.Translate(trans),
		})
	}
	return structErr
}
