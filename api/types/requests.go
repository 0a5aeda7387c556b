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
	"encoding/json"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// EditRequest is an edit submitted by a client.
type EditRequest struct {
	Author  string          `json:"author" validate:"required,identity"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// Validate validates the EditRequest.
func (r *EditRequest) Validate() error {
	return ValidateStruct(r)
}

// CreateProjectRequest is the request to create a project for an external id.
type CreateProjectRequest struct {
	Owner      string          `validate:"required,identity"`
	ExternalID string          `validate:"required,max=128"`
	Title      string          `validate:"max=256"`
	Body       json.RawMessage `validate:"required"`
}

// Validate validates the CreateProjectRequest.
func (r *CreateProjectRequest) Validate() error {
	return ValidateStruct(r)
}

// ValidateIdentity validates a single identity such as a share target.
func ValidateIdentity(identity string) error {
	return ValidateValue(identity, "required,identity")
}

func init() {
	registerValidation("identity", "{0} must be 1 to 64 letters, digits, '_' or '-'", func(level validator.FieldLevel) bool {
		return identityPattern.MatchString(level.Field().String())
	})
}
