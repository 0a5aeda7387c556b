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
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/projects"
)

// Flush folds a snapshot of every loaded project with unsaved changes and
// writes it to the store, followed by the registry state. With force, every
// loaded project is written. Projects are written in parallel and
// independently: a failed project stays dirty and is retried by the next
// flush while the others are saved.
func (r *Registry) Flush(ctx context.Context, force bool) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	start := time.Now()
	pending := r.takePending()

	targets := make(map[types.ID]struct{})
	for _, actor := range r.actors.Values() {
		if force || actor.Dirty() {
			targets[actor.ID()] = struct{}{}
		}
	}
	for id := range pending {
		targets[id] = struct{}{}
	}

	var mu sync.Mutex
	var errs []error
	saved := 0

	g := errgroup.Group{}
	g.SetLimit(r.conf.SaveConcurrency)
	for id := range targets {
		id := id
		g.Go(func() error {
			err := r.WithActor(ctx, id, func(actor *projects.Actor) error {
				return r.saveProject(ctx, actor)
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				saved++
				return nil
			}
			if errors.Is(err, database.ErrProjectNotFound) {
				return nil
			}
			if _, ok := pending[id]; ok {
				r.markPending(id)
			}
			errs = append(errs, err)
			return nil
		})
	}
	// every goroutine returns nil; failures are collected in errs
	_ = g.Wait()

	if err := r.saveRegistry(ctx, force); err != nil {
		errs = append(errs, err)
	}

	r.metrics.ObservePersist(time.Since(start))
	if len(errs) > 0 {
		r.logger.Errorf("flush: saved %d of %d projects: %v", saved, len(targets), errors.Join(errs...))
		return errors.Join(errs...)
	}
	if saved > 0 {
		r.logger.Infof("flush: saved %d projects in %s", saved, time.Since(start))
	}
	return nil
}

// saveProject writes the state of one actor along with the metadata of its
// project.
func (r *Registry) saveProject(ctx context.Context, actor *projects.Actor) error {
	state, err := actor.PrepareSave(ctx, false)
	if err != nil {
		return err
	}
	project, err := r.FindProject(actor.ID())
	if err != nil {
		return err
	}

	info := &database.ProjectInfo{
		ID:           project.ID,
		Owner:        project.Owner,
		SharedWith:   project.SharedWith,
		Title:        project.Title,
		LastEditor:   state.LastEditor,
		LastEditedAt: state.LastEditedAt,
		CreatedAt:    project.CreatedAt,
		Snapshot:     state.Snapshot,
		Changes:      state.Changes,
		Chat:         state.Chat,
	}
	if err := r.db.SaveProjectInfo(ctx, info); err != nil {
		r.metrics.AddPersistFailure()
		return fmt.Errorf("save %s: %w: %w", actor.ID(), ErrPersistenceFailure, err)
	}

	actor.MarkSaved(state.Revision)
	r.recordLastEdit(project.ID, state.LastEditor, state.LastEditedAt)
	return nil
}

// recordLastEdit copies the last editor of a saved state into the
// directory.
func (r *Registry) recordLastEdit(id types.ID, editor string, editedAt time.Time) {
	txn := r.directory.Txn(true)
	defer txn.Abort()

	project, err := findProject(txn, id)
	if err != nil || (project.LastEditor == editor && project.LastEditedAt.Equal(editedAt)) {
		return
	}

	updated := project.DeepCopy()
	updated.LastEditor = editor
	updated.LastEditedAt = editedAt
	if err := txn.Insert(tblProjects, updated); err != nil {
		r.logger.Warnf("record last edit of %s: %v", id, err)
		return
	}
	txn.Commit()
}

// saveRegistry writes the id counter, the external refs and the free passes
// if they changed since the last save.
func (r *Registry) saveRegistry(ctx context.Context, force bool) error {
	revision := r.revision.Load()
	if !force && revision == r.savedRevision.Load() {
		return nil
	}

	info, err := r.registryInfo()
	if err != nil {
		return err
	}
	if err := r.db.SaveRegistryInfo(ctx, info); err != nil {
		r.metrics.AddPersistFailure()
		return fmt.Errorf("save registry: %w: %w", ErrPersistenceFailure, err)
	}

	for {
		saved := r.savedRevision.Load()
		if revision <= saved || r.savedRevision.CompareAndSwap(saved, revision) {
			return nil
		}
	}
}

func (r *Registry) registryInfo() (*database.RegistryInfo, error) {
	txn := r.directory.Txn(false)
	defer txn.Abort()

	info := &database.RegistryInfo{
		NextID:       r.nextID.Load(),
		ExternalRefs: []database.ExternalRefInfo{},
		FreePasses:   r.FreePasses(),
	}

	iter, err := txn.Get(tblExternalRefs, "id")
	if err != nil {
		return nil, fmt.Errorf("fetch external refs: %w", err)
	}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info.ExternalRefs = append(info.ExternalRefs, *raw.(*database.ExternalRefInfo))
	}
	return info, nil
}
