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

// Package projects provides the project actor, the unit of serialization of
// one project. Every mutation of a project and every reconciliation runs on
// the actor's own goroutine in submission order; different projects never
// share a lock.
package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/changelog"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/pkg/presence"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
)

var (
	// ErrInvalidEdit is returned when an edit is malformed. The edit never
	// enters the change log.
	ErrInvalidEdit = errors.InvalidArgument("invalid edit").WithCode("ErrInvalidEdit")

	// ErrInvalidSnapshot is returned when an uploaded snapshot is malformed.
	ErrInvalidSnapshot = errors.InvalidArgument("invalid snapshot").WithCode("ErrInvalidSnapshot")

	// ErrDraining is returned for writes after the server started saving
	// for shutdown. The caller should retry against the next process.
	ErrDraining = errors.Unavailable("server is draining").WithCode("ErrDraining")

	// ErrActorClosed is returned when the actor stopped before it could run
	// the request.
	ErrActorClosed = errors.Unavailable("project actor is closed").WithCode("ErrActorClosed")

	// ErrInvalidChat is returned when a chat message is malformed.
	ErrInvalidChat = errors.InvalidArgument("invalid chat message").WithCode("ErrInvalidChat")

	// ErrInvalidState is returned when an actor is created from a snapshot
	// and change log that do not line up.
	ErrInvalidState = errors.Internal("snapshot and change log do not line up").WithCode("ErrInvalidState")
)

// State is the persisted state an actor starts from.
type State struct {
	Snapshot     types.Snapshot
	Changes      []types.ChangeRecord
	Chat         []types.ChatMessage
	LastEditor   string
	LastEditedAt time.Time
}

// SaveState is a copy of the actor state taken for persistence.
type SaveState struct {
	State

	// Revision identifies the state. Pass it to MarkSaved once it is stored.
	Revision int64
}

// Actor owns the change log, snapshot and presence roster of one project.
type Actor struct {
	id      types.ID
	conf    Config
	folder  Folder
	metrics *prometheus.Metrics
	logger  logging.Logger

	requests  chan func()
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// fields below are owned by the actor goroutine
	snapshot     types.Snapshot
	log          *changelog.Log
	roster       *presence.Roster
	chat         []types.ChatMessage
	sealed       bool
	lastEditor   string
	lastEditedAt time.Time
	lastActive   time.Time

	latest        atomic.Int64
	revision      atomic.Int64
	savedRevision atomic.Int64
	identities    atomic.Pointer[[]string]
}

// NewActor creates an actor for the project from its persisted state. The
// actor does not process requests until Run is called.
func NewActor(
	id types.ID,
	state State,
	folder Folder,
	conf Config,
	metrics *prometheus.Metrics,
) (*Actor, error) {
	log, err := changelog.New(state.Changes...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", id, ErrInvalidState, err)
	}

	snapVersion := state.Snapshot.Version
	if latest, ok := log.Latest(); ok {
		oldest, _ := log.Oldest()
		if latest < snapVersion || oldest > snapVersion+1 {
			return nil, fmt.Errorf(
				"%s: snapshot %d, log %d..%d: %w",
				id, snapVersion, oldest, latest, ErrInvalidState,
			)
		}
	}

	if conf.MailboxSize <= 0 {
		conf.MailboxSize = DefaultMailboxSize
	}
	if conf.ChatHistory <= 0 {
		conf.ChatHistory = DefaultChatHistory
	}

	a := &Actor{
		id:           id,
		conf:         conf,
		folder:       folder,
		metrics:      metrics,
		logger:       logging.New("project", logging.NewField("project", id.String())),
		requests:     make(chan func(), conf.MailboxSize),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		snapshot:     state.Snapshot.DeepCopy(),
		log:          log,
		roster:       presence.NewRoster(),
		chat:         lastChat(state.Chat, conf.ChatHistory),
		lastEditor:   state.LastEditor,
		lastEditedAt: state.LastEditedAt,
		lastActive:   time.Now(),
	}
	a.latest.Store(a.latestVersion())
	a.publishIdentities()
	return a, nil
}

// ID returns the id of the project.
func (a *Actor) ID() types.ID {
	return a.id
}

// Run processes requests until the actor is closed or ctx is done.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)

	for {
		// a closed actor must not run queued requests, even when both
		// channels are ready
		select {
		case <-a.closing:
			return
		default:
		}

		select {
		case req := <-a.requests:
			req()
		case <-a.closing:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the actor. Requests queued but not yet run fail with
// ErrActorClosed.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.closing)
	})
}

// Done is closed once the actor goroutine exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// do runs fn on the actor goroutine and waits for it to finish.
func (a *Actor) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		fn()
		close(finished)
	}

	select {
	case a.requests <- req:
	case <-a.done:
		return ErrActorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-a.done:
		// fn runs before the loop can exit, so finished is already closed
		// if the request was processed.
		select {
		case <-finished:
			return nil
		default:
			return ErrActorClosed
		}
	}
}

func (a *Actor) latestVersion() int64 {
	if latest, ok := a.log.Latest(); ok && latest > a.snapshot.Version {
		return latest
	}
	return a.snapshot.Version
}

// LatestVersion returns the version of the latest edit. It does not go
// through the mailbox.
func (a *Actor) LatestVersion() int64 {
	return a.latest.Load()
}

// ActiveCount returns the number of connected identities. It does not go
// through the mailbox.
func (a *Actor) ActiveCount() int {
	return a.roster.Len()
}

// ActiveIdentities returns the connected identities as of the last join or
// leave. It does not go through the mailbox.
func (a *Actor) ActiveIdentities() []string {
	return append([]string(nil), (*a.identities.Load())...)
}

func (a *Actor) publishIdentities() {
	identities := a.roster.ListActive()
	a.identities.Store(&identities)
}

// ApplyEdit appends the edit to the change log under the next version and
// broadcasts it to every connected identity except the author.
func (a *Actor) ApplyEdit(ctx context.Context, payload json.RawMessage, author string) (types.ChangeRecord, error) {
	if author == "" {
		a.metrics.AddEditRejected(ErrInvalidEdit.Code())
		return types.ChangeRecord{}, fmt.Errorf("author is required: %w", ErrInvalidEdit)
	}
	if err := a.folder.Validate(payload); err != nil {
		a.metrics.AddEditRejected(ErrInvalidEdit.Code())
		return types.ChangeRecord{}, fmt.Errorf("%s: %w: %w", a.id, ErrInvalidEdit, err)
	}

	var rec types.ChangeRecord
	var editErr error
	if err := a.do(ctx, func() {
		if a.sealed {
			editErr = ErrDraining
			return
		}

		rec = types.ChangeRecord{
			Version:   a.latestVersion() + 1,
			Payload:   append(json.RawMessage(nil), payload...),
			Author:    author,
			Timestamp: time.Now(),
		}
		if editErr = a.log.Append(rec); editErr != nil {
			return
		}

		a.lastEditor = author
		a.lastEditedAt = rec.Timestamp
		a.lastActive = rec.Timestamp
		a.latest.Store(rec.Version)
		a.revision.Add(1)

		msg := types.Message{Type: types.MessageTypeEdit, ProjectID: a.id, Record: &rec}
		a.broadcast(msg, author)

		if a.conf.SnapshotInterval > 0 && rec.Version-a.snapshot.Version >= int64(a.conf.SnapshotInterval) {
			if err := a.snapshotNow(); err != nil {
				a.logger.Errorf("auto snapshot at %d: %v", rec.Version, err)
			}
		}
	}); err != nil {
		return types.ChangeRecord{}, err
	}

	if editErr != nil {
		a.metrics.AddEditRejected(errors.CodeOf(editErr))
		return types.ChangeRecord{}, editErr
	}
	a.metrics.AddEdit()
	return rec, nil
}

// Reconcile answers a client that last saw clientVersion. It never fails
// because of the version; a client that cannot be caught up incrementally
// is told to reload.
func (a *Actor) Reconcile(ctx context.Context, clientVersion float64) (types.ReconcileResult, error) {
	// NaN compares false with every threshold; a client that cannot say
	// what it saw starts over
	if math.IsNaN(clientVersion) {
		clientVersion = math.Inf(-1)
	}

	var result types.ReconcileResult
	if err := a.do(ctx, func() {
		result = a.reconcile(clientVersion)
		a.lastActive = time.Now()
	}); err != nil {
		return types.ReconcileResult{}, err
	}

	a.metrics.AddReconcile(string(result.Outcome))
	return result, nil
}

func (a *Actor) reconcile(clientVersion float64) types.ReconcileResult {
	snapVersion := a.snapshot.Version
	result := types.ReconcileResult{SnapshotVersion: snapVersion}

	oldest, ok := a.log.Oldest()
	if !ok {
		if clientVersion >= float64(snapVersion) {
			result.Outcome = types.Incremental
			result.Records = []types.ChangeRecord{}
			return result
		}

		result.Outcome = types.FetchSnapshot
		result.ForceReload = true
		result.Records = []types.ChangeRecord{}
		return result
	}

	threshold := float64(oldest - 1)
	if clientVersion >= threshold {
		result.Outcome = types.Incremental
		result.Records = a.log.Since(clientVersion)
		if clientVersion > float64(a.latestVersion()) {
			a.logger.Warnf(
				"client version %v is ahead of latest version %d",
				clientVersion, a.latestVersion(),
			)
		}
		return result
	}

	result.ForceReload = true
	result.Records = a.log.Since(clientVersion)
	if float64(snapVersion) >= threshold {
		result.Outcome = types.StaleVersionGap
		return result
	}

	a.logger.Warnf(
		"client version and snapshot version are both older than the log: client %v, snapshot %d, oldest %d",
		clientVersion, snapVersion, oldest,
	)
	result.Outcome = types.Inconsistent
	return result
}

// SnapshotNow folds the unfolded records into a new snapshot at the latest
// version and trims the change log. It is a no-op when nothing was appended
// since the last snapshot.
func (a *Actor) SnapshotNow(ctx context.Context) (types.Snapshot, error) {
	var snapshot types.Snapshot
	var snapErr error
	if err := a.do(ctx, func() {
		snapErr = a.snapshotNow()
		snapshot = a.snapshot.DeepCopy()
	}); err != nil {
		return types.Snapshot{}, err
	}
	return snapshot, snapErr
}

func (a *Actor) snapshotNow() error {
	latest := a.latestVersion()
	if latest == a.snapshot.Version {
		return nil
	}

	start := time.Now()
	body, err := a.folder.Fold(a.snapshot.Body, a.log.Since(float64(a.snapshot.Version)))
	if err != nil {
		return fmt.Errorf("fold %s up to %d: %w", a.id, latest, err)
	}

	a.snapshot = types.Snapshot{Version: latest, Body: body}
	a.trimLog()
	a.revision.Add(1)
	a.metrics.ObserveSnapshot(time.Since(start))
	return nil
}

// trimLog drops folded records beyond the trailing window. Records newer
// than the snapshot are never dropped, so the log stays contiguous with it.
func (a *Actor) trimLog() {
	a.log.TrimThrough(a.snapshot.Version - int64(a.conf.ChangeLogWindow))
}

// StoreClientSnapshot accepts a document body a client folded itself at the
// given version. Uploads older than the current snapshot are ignored. It
// returns whether the snapshot was replaced.
func (a *Actor) StoreClientSnapshot(ctx context.Context, body json.RawMessage, version float64) (bool, error) {
	if !json.Valid(body) {
		return false, fmt.Errorf("%s: body is not JSON: %w", a.id, ErrInvalidSnapshot)
	}
	if version != math.Trunc(version) || version < 0 {
		return false, fmt.Errorf("%s: version %v: %w", a.id, version, ErrInvalidSnapshot)
	}

	var replaced bool
	var storeErr error
	if err := a.do(ctx, func() {
		if a.sealed {
			storeErr = ErrDraining
			return
		}

		v := int64(version)
		if latest := a.latestVersion(); v > latest {
			storeErr = fmt.Errorf("%s: version %d is ahead of %d: %w", a.id, v, latest, ErrInvalidSnapshot)
			return
		}
		if v <= a.snapshot.Version {
			return
		}

		a.snapshot = types.Snapshot{Version: v, Body: append(json.RawMessage(nil), body...)}
		a.trimLog()
		a.revision.Add(1)
		replaced = true
	}); err != nil {
		return false, err
	}
	return replaced, storeErr
}

// Snapshot returns a copy of the current snapshot without folding.
func (a *Actor) Snapshot(ctx context.Context) (types.Snapshot, error) {
	var snapshot types.Snapshot
	if err := a.do(ctx, func() {
		snapshot = a.snapshot.DeepCopy()
	}); err != nil {
		return types.Snapshot{}, err
	}
	return snapshot, nil
}

// Seal makes the actor reject writes with ErrDraining.
func (a *Actor) Seal(ctx context.Context) error {
	return a.do(ctx, func() {
		a.sealed = true
	})
}

// Unseal makes the actor accept writes again.
func (a *Actor) Unseal(ctx context.Context) error {
	return a.do(ctx, func() {
		a.sealed = false
	})
}

// PrepareSave folds a snapshot and returns a copy of the state to persist.
// With seal, the actor rejects writes from now on, so the returned state is
// final.
func (a *Actor) PrepareSave(ctx context.Context, seal bool) (*SaveState, error) {
	var state *SaveState
	if err := a.do(ctx, func() {
		if seal {
			a.sealed = true
		}
		if err := a.snapshotNow(); err != nil {
			// the unfolded log is saved along with the old snapshot
			a.logger.Errorf("snapshot before save: %v", err)
		}

		state = &SaveState{
			State: State{
				Snapshot:     a.snapshot.DeepCopy(),
				Changes:      a.log.Records(),
				Chat:         lastChat(a.chat, a.conf.ChatHistory),
				LastEditor:   a.lastEditor,
				LastEditedAt: a.lastEditedAt,
			},
			Revision: a.revision.Load(),
		}
	}); err != nil {
		return nil, err
	}
	return state, nil
}

// Dirty reports whether the actor changed since its last saved revision.
func (a *Actor) Dirty() bool {
	return a.revision.Load() != a.savedRevision.Load()
}

// MarkDirty forces the next save to include this actor.
func (a *Actor) MarkDirty() {
	a.revision.Add(1)
}

// MarkSaved records that the state of the given revision is stored.
func (a *Actor) MarkSaved(revision int64) {
	for {
		current := a.savedRevision.Load()
		if revision <= current || a.savedRevision.CompareAndSwap(current, revision) {
			return
		}
	}
}

// Retire closes the actor if nobody is connected, nothing is unsaved and it
// was idle for at least idle. It returns whether the actor was closed.
func (a *Actor) Retire(ctx context.Context, idle time.Duration) (bool, error) {
	var retired bool
	if err := a.do(ctx, func() {
		if a.roster.Len() > 0 || a.Dirty() || time.Since(a.lastActive) < idle {
			return
		}
		retired = true
		a.Close()
	}); err != nil {
		return false, err
	}
	return retired, nil
}

// Join adds the identity to the presence roster. Joining again replaces the
// previous handle.
func (a *Actor) Join(ctx context.Context, identity string, handle presence.Handle, cursor json.RawMessage) error {
	return a.do(ctx, func() {
		if prev := a.roster.Join(identity, handle, cursor); prev == nil {
			a.metrics.AddActiveSessions(1)
			a.publishIdentities()
		}
		a.lastActive = time.Now()
	})
}

// Leave removes the identity if it is still bound to the handle with the
// given id. An empty handleID removes the identity unconditionally.
func (a *Actor) Leave(ctx context.Context, identity, handleID string) (bool, error) {
	var left bool
	if err := a.do(ctx, func() {
		if handleID == "" {
			left = a.roster.Leave(identity)
		} else {
			left = a.roster.LeaveHandle(identity, handleID)
		}
		if left {
			a.metrics.AddActiveSessions(-1)
			a.publishIdentities()
		}
		a.lastActive = time.Now()
	}); err != nil {
		return false, err
	}
	return left, nil
}

// UpdateCursor records the cursor of the identity and shares it with the
// other connected identities.
func (a *Actor) UpdateCursor(ctx context.Context, identity string, cursor json.RawMessage) error {
	return a.do(ctx, func() {
		if !a.roster.UpdateCursor(identity, cursor) {
			return
		}
		a.broadcast(types.Message{
			Type:      types.MessageTypeCursor,
			ProjectID: a.id,
			Identity:  identity,
			Cursor:    cursor,
		}, identity)
	})
}

// ListActive returns the connected identities in join order.
func (a *Actor) ListActive(ctx context.Context) ([]string, error) {
	var identities []string
	if err := a.do(ctx, func() {
		identities = a.roster.ListActive()
	}); err != nil {
		return nil, err
	}
	return identities, nil
}

// Active returns the connected identities with their cursors.
func (a *Actor) Active(ctx context.Context) ([]types.PresenceInfo, error) {
	var infos []types.PresenceInfo
	if err := a.do(ctx, func() {
		infos = a.roster.Entries()
	}); err != nil {
		return nil, err
	}
	return infos, nil
}

// PostChat appends a chat message of the sender to the chat of the project
// and delivers it to every connected identity, the sender included.
func (a *Actor) PostChat(ctx context.Context, sender, text string) (types.ChatMessage, error) {
	req := &types.ChatRequest{Sender: sender, Text: text}
	if err := req.Validate(); err != nil {
		return types.ChatMessage{}, fmt.Errorf("%s: %w: %w", a.id, ErrInvalidChat, err)
	}

	var chatMsg types.ChatMessage
	var chatErr error
	if err := a.do(ctx, func() {
		if a.sealed {
			chatErr = ErrDraining
			return
		}

		chatMsg = types.ChatMessage{Sender: sender, Text: text, Timestamp: time.Now()}
		a.chat = lastChat(append(a.chat, chatMsg), a.conf.ChatHistory)
		a.lastActive = chatMsg.Timestamp
		a.revision.Add(1)

		delivered := chatMsg
		a.broadcast(types.Message{
			Type:      types.MessageTypeChat,
			ProjectID: a.id,
			Identity:  sender,
			Chat:      &delivered,
		}, "")
	}); err != nil {
		return types.ChatMessage{}, err
	}
	if chatErr != nil {
		return types.ChatMessage{}, chatErr
	}
	return chatMsg, nil
}

// Chat returns the kept chat messages, oldest first.
func (a *Actor) Chat(ctx context.Context) ([]types.ChatMessage, error) {
	var chat []types.ChatMessage
	if err := a.do(ctx, func() {
		chat = append([]types.ChatMessage{}, a.chat...)
	}); err != nil {
		return nil, err
	}
	return chat, nil
}

// lastChat returns a copy of the last limit messages.
func lastChat(chat []types.ChatMessage, limit int) []types.ChatMessage {
	if len(chat) > limit {
		chat = chat[len(chat)-limit:]
	}
	return append([]types.ChatMessage(nil), chat...)
}

// Broadcast delivers the message to every connected identity.
func (a *Actor) Broadcast(ctx context.Context, msg types.Message) error {
	return a.do(ctx, func() {
		a.broadcast(msg, "")
	})
}

func (a *Actor) broadcast(msg types.Message, except string) {
	a.roster.Each(func(identity string, handle presence.Handle) {
		if identity == except || handle == nil {
			return
		}
		if err := handle.Send(msg); err != nil {
			a.metrics.AddBroadcastDrop()
			a.logger.Debugf("send %s to %s: %v", msg.Type, identity, err)
		}
	})
}
