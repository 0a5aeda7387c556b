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

// Stats is a point-in-time summary of the server.
type Stats struct {
	// Projects is the number of projects known to the registry.
	Projects int `json:"projects"`

	// ExternalRefs is the number of external ids linked to projects.
	ExternalRefs int `json:"externalRefs"`

	// LoadedProjects is the number of projects with a running actor.
	LoadedProjects int `json:"loadedProjects"`

	// ActiveProjects is the number of projects with at least one session.
	ActiveProjects int `json:"activeProjects"`

	// ActiveSessions is the number of connected sessions.
	ActiveSessions int `json:"activeSessions"`

	// ActiveIdentities lists the identities of connected sessions.
	ActiveIdentities []string `json:"activeIdentities"`
}
