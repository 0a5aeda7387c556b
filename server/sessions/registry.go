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

// Package sessions provides the session registry: the process-wide directory
// of projects and their actors. Project metadata and external ids are indexed
// in go-memdb; actors are started lazily from the snapshot store and retired
// again once idle.
package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
	"golang.org/x/sync/singleflight"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/cmap"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/backend/background"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
	"github.com/livescratch/livescratch/server/projects"
)

var (
	// ErrExternalRefNotFound is returned when no project is linked to the
	// external id.
	ErrExternalRefNotFound = errors.NotFound("external ref not found").WithCode("ErrExternalRefNotFound")

	// ErrDuplicateExternalRef is returned when the external id is already
	// linked to another project.
	ErrDuplicateExternalRef = errors.AlreadyExists(
		"external id is linked to another project",
	).WithCode("ErrDuplicateExternalRef")

	// ErrCannotUnshareOwner is returned when unsharing a project with its
	// owner.
	ErrCannotUnshareOwner = errors.FailedPrecond("cannot unshare the owner").WithCode("ErrCannotUnshareOwner")

	// ErrCannotShareWithOwner is returned when sharing a project with its
	// owner.
	ErrCannotShareWithOwner = errors.FailedPrecond("cannot share with the owner").WithCode("ErrCannotShareWithOwner")

	// ErrPersistenceFailure is returned when state could not be written to
	// the snapshot store.
	ErrPersistenceFailure = errors.Internal("failed to persist").WithCode("ErrPersistenceFailure")

	// ErrRegistryClosed is returned when an actor is requested after Close.
	ErrRegistryClosed = errors.Unavailable("registry is closed").WithCode("ErrRegistryClosed")

	// ErrInvalidFreePasses is returned when the free passes are not JSON.
	ErrInvalidFreePasses = errors.InvalidArgument("invalid free passes").WithCode("ErrInvalidFreePasses")
)

// DefaultSaveConcurrency is the default number of projects saved at once.
const DefaultSaveConcurrency = 8

// Config is the configuration of the registry.
type Config struct {
	// Project configures the actors started by the registry.
	Project projects.Config

	// SaveConcurrency is the number of projects Flush writes in parallel.
	SaveConcurrency int
}

// Registry is the directory of projects, keyed by internal id and by
// external id.
type Registry struct {
	conf       Config
	db         database.Database
	folder     projects.Folder
	background *background.Background
	metrics    *prometheus.Metrics
	logger     logging.Logger

	directory *memdb.MemDB
	nextID    atomic.Int64

	actors  *cmap.Map[types.ID, *projects.Actor]
	loading singleflight.Group
	sealed  atomic.Bool

	// flushMu serializes Flush.
	flushMu sync.Mutex

	// pending holds projects whose metadata changed since the last flush.
	pendingMu sync.Mutex
	pending   map[types.ID]struct{}

	// revision counts changes of the registry state: the id counter, the
	// external refs and the free passes.
	revision      atomic.Int64
	savedRevision atomic.Int64

	freePassesMu sync.RWMutex
	freePasses   json.RawMessage
}

// New creates an empty registry on top of the given store. Call Load to
// fill it with the stored projects.
func New(
	conf Config,
	db database.Database,
	folder projects.Folder,
	bg *background.Background,
	metrics *prometheus.Metrics,
) (*Registry, error) {
	directory, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	if conf.SaveConcurrency <= 0 {
		conf.SaveConcurrency = DefaultSaveConcurrency
	}

	r := &Registry{
		conf:       conf,
		db:         db,
		folder:     folder,
		background: bg,
		metrics:    metrics,
		logger:     logging.New("registry"),
		directory:  directory,
		actors:     cmap.New[types.ID, *projects.Actor](),
		pending:    make(map[types.ID]struct{}),
	}
	r.nextID.Store(1)
	return r, nil
}

// Load rebuilds the directory from the store. Actors are not started until
// their project is used.
func (r *Registry) Load(ctx context.Context) error {
	info, err := r.db.FindRegistryInfo(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	metas, err := r.db.ListProjectMetas(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}

	txn := r.directory.Txn(true)
	defer txn.Abort()

	maxID := int64(0)
	for _, meta := range metas {
		n, err := meta.ID.Int64()
		if err != nil {
			return fmt.Errorf("load project %q: %w", meta.ID, err)
		}
		if n > maxID {
			maxID = n
		}
		if err := txn.Insert(tblProjects, meta.ToProject()); err != nil {
			return fmt.Errorf("insert project %s: %w", meta.ID, err)
		}
	}

	refs := 0
	for _, ref := range info.ExternalRefs {
		raw, err := txn.First(tblProjects, "id", ref.ProjectID.String())
		if err != nil {
			return fmt.Errorf("find project %s: %w", ref.ProjectID, err)
		}
		if raw == nil {
			r.logger.Warnf("skip external ref %q of missing project %s", ref.ExternalID, ref.ProjectID)
			continue
		}

		stored := ref
		if err := txn.Insert(tblExternalRefs, &stored); err != nil {
			return fmt.Errorf("insert external ref %q: %w", ref.ExternalID, err)
		}
		refs++
	}
	txn.Commit()

	next := info.NextID
	if next <= maxID {
		next = maxID + 1
	}
	if next < 1 {
		next = 1
	}
	r.nextID.Store(next)

	r.freePassesMu.Lock()
	r.freePasses = append(json.RawMessage(nil), info.FreePasses...)
	r.freePassesMu.Unlock()

	r.logger.Infof("loaded %d projects and %d external refs, next id %d", len(metas), refs, next)
	return nil
}

// Actor returns the running actor of the project, starting it from the
// store if needed.
func (r *Registry) Actor(ctx context.Context, id types.ID) (*projects.Actor, error) {
	if actor, ok := r.liveActor(id); ok {
		return actor, nil
	}
	if _, err := r.findProjectRow(id); err != nil {
		return nil, err
	}

	v, err, _ := r.loading.Do(id.String(), func() (any, error) {
		if actor, ok := r.liveActor(id); ok {
			return actor, nil
		}
		return r.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*projects.Actor), nil
}

// WithActor runs fn with the actor of the project. If the actor was retired
// while fn ran, fn is retried once with a fresh actor.
func (r *Registry) WithActor(ctx context.Context, id types.ID, fn func(actor *projects.Actor) error) error {
	for attempt := 0; ; attempt++ {
		actor, err := r.Actor(ctx, id)
		if err != nil {
			return err
		}

		err = fn(actor)
		if attempt == 0 && errors.Is(err, projects.ErrActorClosed) {
			r.forget(actor)
			continue
		}
		return err
	}
}

func (r *Registry) liveActor(id types.ID) (*projects.Actor, bool) {
	actor, ok := r.actors.Get(id)
	if !ok {
		return nil, false
	}

	select {
	case <-actor.Done():
		r.forget(actor)
		return nil, false
	default:
		return actor, true
	}
}

func (r *Registry) load(ctx context.Context, id types.ID) (*projects.Actor, error) {
	info, err := r.db.FindProjectInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := projects.NewActor(id, projects.State{
		Snapshot:     info.Snapshot,
		Changes:      info.Changes,
		Chat:         info.Chat,
		LastEditor:   info.LastEditor,
		LastEditedAt: info.LastEditedAt,
	}, r.folder, r.conf.Project, r.metrics)
	if err != nil {
		return nil, err
	}

	if err := r.start(ctx, actor); err != nil {
		return nil, err
	}
	r.logger.Debugf("loaded project %s at version %d", id, actor.LatestVersion())
	return actor, nil
}

// start runs the actor loop and publishes the actor. An actor started while
// the registry is sealed is sealed too.
func (r *Registry) start(ctx context.Context, actor *projects.Actor) error {
	if !r.background.AttachGoroutine(actor.Run, "project-actor") {
		return ErrRegistryClosed
	}

	r.actors.Set(actor.ID(), actor)
	r.metrics.SetLoadedProjects(r.actors.Len())

	if r.sealed.Load() {
		if err := actor.Seal(ctx); err != nil {
			return fmt.Errorf("seal %s: %w", actor.ID(), err)
		}
	}
	return nil
}

// forget drops the actor from the directory if it is still the one
// registered for its project.
func (r *Registry) forget(actor *projects.Actor) {
	r.actors.Delete(actor.ID(), func(current *projects.Actor, _ bool) bool {
		return current == actor
	})
	r.metrics.SetLoadedProjects(r.actors.Len())
}

// Offload retires actors that have no sessions, no unsaved changes and were
// idle for at least idle. It returns the number of retired actors.
func (r *Registry) Offload(ctx context.Context, idle time.Duration) (int, error) {
	retiredCount := 0
	for _, actor := range r.actors.Values() {
		retired, err := actor.Retire(ctx, idle)
		if errors.Is(err, projects.ErrActorClosed) {
			r.forget(actor)
			continue
		}
		if err != nil {
			return retiredCount, err
		}
		if retired {
			r.forget(actor)
			retiredCount++
		}
	}
	return retiredCount, nil
}

// Seal makes every actor reject writes with projects.ErrDraining. Actors
// started later are sealed as well.
func (r *Registry) Seal(ctx context.Context) error {
	r.sealed.Store(true)

	var errs []error
	for _, actor := range r.actors.Values() {
		if err := actor.Seal(ctx); err != nil && !errors.Is(err, projects.ErrActorClosed) {
			errs = append(errs, fmt.Errorf("seal %s: %w", actor.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Unseal makes every actor accept writes again.
func (r *Registry) Unseal(ctx context.Context) error {
	r.sealed.Store(false)

	var errs []error
	for _, actor := range r.actors.Values() {
		if err := actor.Unseal(ctx); err != nil && !errors.Is(err, projects.ErrActorClosed) {
			errs = append(errs, fmt.Errorf("unseal %s: %w", actor.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Sealed reports whether the registry rejects writes.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// BroadcastToAll delivers the message to every connected session of every
// loaded project.
func (r *Registry) BroadcastToAll(ctx context.Context, msg types.Message) error {
	var errs []error
	for _, actor := range r.actors.Values() {
		msg.ProjectID = actor.ID()
		if err := actor.Broadcast(ctx, msg); err != nil && !errors.Is(err, projects.ErrActorClosed) {
			errs = append(errs, fmt.Errorf("broadcast to %s: %w", actor.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns point-in-time counts of the registry. It never waits for an
// actor.
func (r *Registry) Stats(_ context.Context) (*types.Stats, error) {
	txn := r.directory.Txn(false)
	defer txn.Abort()

	stats := &types.Stats{ActiveIdentities: []string{}}

	iter, err := txn.Get(tblProjects, "id")
	if err != nil {
		return nil, fmt.Errorf("fetch projects: %w", err)
	}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		stats.Projects++
	}

	iter, err = txn.Get(tblExternalRefs, "id")
	if err != nil {
		return nil, fmt.Errorf("fetch external refs: %w", err)
	}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		stats.ExternalRefs++
	}

	identities := make(map[string]struct{})
	for _, actor := range r.actors.Values() {
		stats.LoadedProjects++
		count := actor.ActiveCount()
		if count == 0 {
			continue
		}
		stats.ActiveProjects++
		stats.ActiveSessions += count
		for _, identity := range actor.ActiveIdentities() {
			identities[identity] = struct{}{}
		}
	}
	for identity := range identities {
		stats.ActiveIdentities = append(stats.ActiveIdentities, identity)
	}
	sort.Strings(stats.ActiveIdentities)

	return stats, nil
}

// FreePasses returns the stored free passes unchanged.
func (r *Registry) FreePasses() json.RawMessage {
	r.freePassesMu.RLock()
	defer r.freePassesMu.RUnlock()
	return append(json.RawMessage(nil), r.freePasses...)
}

// SetFreePasses replaces the free passes. They are saved with the next
// flush.
func (r *Registry) SetFreePasses(freePasses json.RawMessage) error {
	if len(freePasses) > 0 && !json.Valid(freePasses) {
		return ErrInvalidFreePasses
	}

	r.freePassesMu.Lock()
	r.freePasses = append(json.RawMessage(nil), freePasses...)
	r.freePassesMu.Unlock()
	r.revision.Add(1)
	return nil
}

// Close stops every actor and waits for them to exit. Unsaved changes are
// lost; call Flush first.
func (r *Registry) Close() {
	actors := r.actors.Values()
	for _, actor := range actors {
		actor.Close()
	}
	for _, actor := range actors {
		<-actor.Done()
	}
}
