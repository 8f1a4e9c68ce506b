/*
 * Copyright 2026 The Tidemark Authors. All rights reserved.
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

// Package validation provides validation of user-supplied values such as
// user names and document paths.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

const (
	// userNameRegexString restricts user names to a safe identifier set.
	userNameRegexString = `^[a-zA-Z0-9\-._~@]+$`
)

var (
	userNameRegex = regexp.MustCompile(userNameRegexString)

	defaultValidator = validator.New()
	defaultEn        = en.New()
	uni              = ut.New(defaultEn, defaultEn)

	trans, _ = uni.GetTranslator(defaultEn.Locale())
)

// FormError is an error detected by the validator, carrying the violated tag.
type FormError struct {
	Tag     string
	Message string
}

func (e FormError) Error() string {
	return e.Message
}

func registerValidation(tag string, fn func(fl validator.FieldLevel) bool) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func registerTranslation(tag, msg string) {
	if err := defaultValidator.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
		if err := ut.Add(tag, msg, true); err != nil {
			return fmt.Errorf("add translation: %w", err)
		}
		return nil
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(tag, fe.Field())
		return t
	}); err != nil {
		panic(err)
	}
}

// ValidateValue validates the value with the given tag expression.
func ValidateValue(v interface{}, tag string) error {
	if err := defaultValidator.Var(v, tag); err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			return FormError{
				Tag:     e.Tag(),
				Message: e.Translate(trans),
			}
		}
	}

	return nil
}

// ValidateUserName validates a user name used as a subscriber identity.
func ValidateUserName(name string) error {
	return ValidateValue(name, "required,username")
}

// ValidatePath validates an absolute document path.
func ValidatePath(path string) error {
	return ValidateValue(path, "required,docpath")
}

func init() {
	registerValidation("username", func(v validator.FieldLevel) bool {
		return userNameRegex.MatchString(v.Field().String())
	})
	registerTranslation("username", "{0} must be a valid user name")

	registerValidation("docpath", func(v validator.FieldLevel) bool {
		path := v.Field().String()
		return strings.HasPrefix(path, "/") && !strings.Contains(path, "//")
	})
	registerTranslation("docpath", "{0} must be an absolute document path")
}
