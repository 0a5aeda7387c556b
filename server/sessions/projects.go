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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/projects"
)

// CreateProject creates a project whose snapshot at version 0 is the given
// body and links it to externalID. If externalID is already linked, the
// linked project is returned instead.
func (r *Registry) CreateProject(
	ctx context.Context,
	owner string,
	externalID string,
	body json.RawMessage,
	title string,
) (*projects.Actor, error) {
	if r.sealed.Load() {
		return nil, projects.ErrDraining
	}
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("initial body of %q: %w", externalID, projects.ErrInvalidSnapshot)
	}

	txn := r.directory.Txn(true)
	defer txn.Abort()

	if externalID != "" {
		ref, err := findExternalRef(txn, externalID)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			txn.Abort()
			return r.Actor(ctx, ref.ProjectID)
		}
	}

	id := types.NewID(r.nextID.Add(1) - 1)
	actor, err := projects.NewActor(id, projects.State{
		Snapshot: types.Snapshot{Version: 0, Body: append(json.RawMessage(nil), body...)},
	}, r.folder, r.conf.Project, r.metrics)
	if err != nil {
		return nil, err
	}
	// the store has no record of the project until it is flushed
	actor.MarkDirty()

	project := &types.Project{
		ID:         id,
		Owner:      owner,
		SharedWith: []string{},
		Title:      title,
		CreatedAt:  time.Now(),
	}
	if err := txn.Insert(tblProjects, project); err != nil {
		return nil, fmt.Errorf("insert project %s: %w", id, err)
	}
	if externalID != "" {
		if err := txn.Insert(tblExternalRefs, &database.ExternalRefInfo{
			ExternalID: externalID,
			ProjectID:  id,
			Owner:      owner,
		}); err != nil {
			return nil, fmt.Errorf("insert external ref %q: %w", externalID, err)
		}
	}

	if err := r.start(ctx, actor); err != nil {
		return nil, err
	}
	txn.Commit()
	r.revision.Add(1)

	r.logger.Infof("created project %s for %q", id, externalID)
	return actor, nil
}

// ResolveID returns the id of the project linked to externalID.
func (r *Registry) ResolveID(externalID string) (types.ID, error) {
	txn := r.directory.Txn(false)
	defer txn.Abort()

	ref, err := findExternalRef(txn, externalID)
	if err != nil {
		return "", err
	}
	if ref == nil {
		return "", fmt.Errorf("%q: %w", externalID, ErrExternalRefNotFound)
	}
	return ref.ProjectID, nil
}

// Resolve returns the actor of the project linked to externalID.
func (r *Registry) Resolve(ctx context.Context, externalID string) (*projects.Actor, error) {
	id, err := r.ResolveID(externalID)
	if err != nil {
		return nil, err
	}
	return r.Actor(ctx, id)
}

// FindProject returns the metadata of the project with its external refs.
func (r *Registry) FindProject(id types.ID) (*types.Project, error) {
	txn := r.directory.Txn(false)
	defer txn.Abort()

	project, err := findProject(txn, id)
	if err != nil {
		return nil, err
	}

	iter, err := txn.Get(tblExternalRefs, "project_id", id.String())
	if err != nil {
		return nil, fmt.Errorf("fetch external refs of %s: %w", id, err)
	}
	project = project.DeepCopy()
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		ref := raw.(*database.ExternalRefInfo)
		project.ExternalRefs = append(project.ExternalRefs, types.ExternalRef{
			ExternalID: ref.ExternalID,
			Owner:      ref.Owner,
		})
	}
	return project, nil
}

func (r *Registry) findProjectRow(id types.ID) (*types.Project, error) {
	txn := r.directory.Txn(false)
	defer txn.Abort()
	return findProject(txn, id)
}

// Link links externalID to the project. Linking an external id to the
// project it already points to does nothing.
func (r *Registry) Link(_ context.Context, id types.ID, externalID, owner string) error {
	if r.sealed.Load() {
		return projects.ErrDraining
	}

	txn := r.directory.Txn(true)
	defer txn.Abort()

	if _, err := findProject(txn, id); err != nil {
		return err
	}

	ref, err := findExternalRef(txn, externalID)
	if err != nil {
		return err
	}
	if ref != nil {
		if ref.ProjectID == id {
			return nil
		}
		return fmt.Errorf("%q is linked to %s: %w", externalID, ref.ProjectID, ErrDuplicateExternalRef)
	}

	if err := txn.Insert(tblExternalRefs, &database.ExternalRefInfo{
		ExternalID: externalID,
		ProjectID:  id,
		Owner:      owner,
	}); err != nil {
		return fmt.Errorf("insert external ref %q: %w", externalID, err)
	}
	txn.Commit()
	r.revision.Add(1)
	return nil
}

// Unlink removes externalID. Unlinking an unknown external id does nothing.
func (r *Registry) Unlink(_ context.Context, externalID string) error {
	if r.sealed.Load() {
		return projects.ErrDraining
	}

	txn := r.directory.Txn(true)
	defer txn.Abort()

	ref, err := findExternalRef(txn, externalID)
	if err != nil {
		return err
	}
	if ref == nil {
		return nil
	}

	if err := txn.Delete(tblExternalRefs, ref); err != nil {
		return fmt.Errorf("delete external ref %q: %w", externalID, err)
	}
	txn.Commit()
	r.revision.Add(1)
	return nil
}

// Share adds the identity to the shared list of the project. Sharing twice
// keeps a single entry.
func (r *Registry) Share(_ context.Context, id types.ID, identity string) error {
	return r.updateProject(id, func(project *types.Project) (bool, error) {
		if project.Owner == identity {
			return false, fmt.Errorf("%s with %q: %w", id, identity, ErrCannotShareWithOwner)
		}
		for _, shared := range project.SharedWith {
			if shared == identity {
				return false, nil
			}
		}
		project.SharedWith = append(project.SharedWith, identity)
		return true, nil
	})
}

// Unshare removes the identity from the shared list of the project.
func (r *Registry) Unshare(_ context.Context, id types.ID, identity string) error {
	return r.updateProject(id, func(project *types.Project) (bool, error) {
		if project.Owner == identity {
			return false, fmt.Errorf("%s with %q: %w", id, identity, ErrCannotUnshareOwner)
		}
		for i, shared := range project.SharedWith {
			if shared == identity {
				project.SharedWith = append(project.SharedWith[:i], project.SharedWith[i+1:]...)
				return true, nil
			}
		}
		return false, nil
	})
}

// updateProject applies update to a copy of the project row and stores it
// if update reports a change. The project is saved with the next flush.
func (r *Registry) updateProject(id types.ID, update func(project *types.Project) (bool, error)) error {
	if r.sealed.Load() {
		return projects.ErrDraining
	}

	txn := r.directory.Txn(true)
	defer txn.Abort()

	project, err := findProject(txn, id)
	if err != nil {
		return err
	}

	updated := project.DeepCopy()
	changed, err := update(updated)
	if err != nil || !changed {
		return err
	}

	if err := txn.Insert(tblProjects, updated); err != nil {
		return fmt.Errorf("update project %s: %w", id, err)
	}
	txn.Commit()
	r.markPending(id)
	return nil
}

func (r *Registry) markPending(id types.ID) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	r.pending[id] = struct{}{}
}

func (r *Registry) takePending() map[types.ID]struct{} {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	pending := r.pending
	r.pending = make(map[types.ID]struct{})
	return pending
}

func findProject(txn *memdb.Txn, id types.ID) (*types.Project, error) {
	raw, err := txn.First(tblProjects, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("find project by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrProjectNotFound)
	}
	return raw.(*types.Project), nil
}

func findExternalRef(txn *memdb.Txn, externalID string) (*database.ExternalRefInfo, error) {
	raw, err := txn.First(tblExternalRefs, "id", externalID)
	if err != nil {
		return nil, fmt.Errorf("find external ref: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*database.ExternalRefInfo), nil
}
