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

package projects

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
)

// ErrNullPatch is returned for a null payload.
var ErrNullPatch = errors.New("payload is null")

// Folder folds change records into a document body. Payloads are checked
// with Validate before they enter a change log, so Fold only sees payloads
// Validate accepted.
type Folder interface {
	Validate(payload json.RawMessage) error
	Fold(body json.RawMessage, records []types.ChangeRecord) (json.RawMessage, error)
}

// MergePatchFolder treats every payload as an RFC 7386 JSON merge patch of
// the document.
type MergePatchFolder struct{}

// Validate accepts JSON objects only.
func (MergePatchFolder) Validate(payload json.RawMessage) error {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(payload, &patch); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}
	// null decodes without error but would replace the whole document
	if patch == nil {
		return ErrNullPatch
	}
	return nil
}

// Fold applies the records to the body in order.
func (MergePatchFolder) Fold(body json.RawMessage, records []types.ChangeRecord) (json.RawMessage, error) {
	doc := []byte(body)
	if len(doc) == 0 {
		doc = []byte("{}")
	}

	for _, rec := range records {
		patched, err := jsonpatch.MergePatch(doc, rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("fold version %d: %w", rec.Version, err)
		}
		doc = patched
	}
	return doc, nil
}
