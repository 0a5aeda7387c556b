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

package sessions

import (
	"github.com/hashicorp/go-memdb"
)

var (
	tblProjects     = "projects"
	tblExternalRefs = "external_refs"
)

// schema holds the directory of the registry. Rows of tblProjects are
// *types.Project without ExternalRefs; rows of tblExternalRefs are
// *database.ExternalRefInfo. Rows are never modified in place.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblProjects: {
			Name: tblProjects,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"owner": {
					Name:         "owner",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "Owner"},
				},
			},
		},
		tblExternalRefs: {
			Name: tblExternalRefs,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ExternalID"},
				},
				"project_id": {
					Name:    "project_id",
					Indexer: &memdb.StringFieldIndex{Field: "ProjectID"},
				},
			},
		},
	},
}
