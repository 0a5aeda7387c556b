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

package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/pkg/limit"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/projects"
)

var (
	// ErrSessionClosed is returned when sending to a closed session.
	ErrSessionClosed = errors.Unavailable("session is closed").WithCode("ErrSessionClosed")

	// ErrSendBufferFull is returned when a session does not drain its
	// messages fast enough. The session is closed, so the client reconnects
	// and reconciles instead of missing a change.
	ErrSendBufferFull = errors.ResourceExhausted("send buffer is full").WithCode("ErrSendBufferFull")

	// ErrTooManyEdits is returned when a session exceeds its edit rate.
	ErrTooManyEdits = errors.ResourceExhausted("too many edits").WithCode("ErrTooManyEdits")

	// ErrTooManyMessages is returned when a session exceeds its chat rate.
	ErrTooManyMessages = errors.ResourceExhausted("too many chat messages").WithCode("ErrTooManyMessages")

	// ErrUnknownMessage is returned for a message type a session cannot send.
	ErrUnknownMessage = errors.InvalidArgument("unknown message type").WithCode("ErrUnknownMessage")
)

// ClientMessage is a message sent by a live session.
type ClientMessage struct {
	Type    types.MessageType `json:"type"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Cursor  json.RawMessage   `json:"cursor,omitempty"`
	Text    string            `json:"text,omitempty"`
}

// session is one WebSocket connection bound to a project. It implements
// presence.Handle. Every write goes through send so that writeLoop is the
// only writer of the connection.
type session struct {
	id       string
	identity string
	conn     *websocket.Conn

	send         chan types.Message
	closed       chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newSession(identity string, conn *websocket.Conn, conf *Config) *session {
	return &session{
		id:           xid.New().String(),
		identity:     identity,
		conn:         conn,
		send:         make(chan types.Message, conf.SendBufferSize),
		closed:       make(chan struct{}),
		writeTimeout: conf.writeTimeout(),
	}
}

// ID returns the unique id of the connection.
func (s *session) ID() string {
	return s.id
}

// Send queues the message without blocking. A session whose buffer is full
// is closed, which ends its read loop and removes it from the roster.
func (s *session) Send(msg types.Message) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		s.close()
		return ErrSendBufferFull
	}
}

func (s *session) sendError(err error) {
	_ = s.Send(types.Message{
		Type: types.MessageTypeError,
		Text: err.Error(),
		Code: errors.CodeOf(err),
	})
}

func (s *session) writeLoop() {
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				s.close()
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// serveSession upgrades the request to a live session of the project for
// the identity given in the query.
func (s *Server) serveSession(c *gin.Context) {
	identity := c.Query("identity")
	if err := types.ValidateIdentity(identity); err != nil {
		abort(c, invalid(err))
		return
	}

	actor := projects.From(c.Request.Context())
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		logging.From(c.Request.Context()).Debugf("upgrade %s: %v", actor.ID(), err)
		return
	}
	conn.SetReadLimit(s.conf.MaxRequestBytes)

	sess := newSession(identity, conn, s.conf)
	logger := logging.From(s.ctx).With("project", actor.ID().String(), "session", sess.id)
	ctx := logging.With(s.ctx, logger)

	if err := actor.Join(ctx, identity, sess, nil); err != nil {
		logger.Warnf("join %s: %v", identity, err)
		_ = conn.WriteJSON(types.Message{Type: types.MessageTypeError, Text: err.Error(), Code: errors.CodeOf(err)})
		sess.close()
		return
	}
	s.sessions.Set(sess.id, sess)
	go sess.writeLoop()

	throttler := limit.NewThrottler(s.conf.cursorInterval())
	defer func() {
		throttler.Stop()
		if _, err := actor.Leave(context.Background(), identity, sess.id); err != nil &&
			!errors.Is(err, projects.ErrActorClosed) {
			logger.Warnf("leave %s: %v", identity, err)
		}
		s.sessions.Delete(sess.id, func(_ *session, _ bool) bool { return true })
		sess.close()
	}()

	s.readLoop(ctx, actor, sess, throttler)
}

// readLoop handles the messages of the session until the connection closes
// or the actor stops.
func (s *Server) readLoop(ctx context.Context, actor *projects.Actor, sess *session, throttler *limit.Throttler) {
	logger := logging.From(ctx)
	limiter := rate.NewLimiter(rate.Limit(s.conf.EditsPerSecond), s.conf.EditBurst)
	chatLimiter := rate.NewLimiter(rate.Limit(s.conf.EditsPerSecond), s.conf.EditBurst)
	var cursor atomic.Pointer[json.RawMessage]

	for {
		var msg ClientMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("read: %v", err)
			}
			return
		}

		switch msg.Type {
		case types.MessageTypeEdit:
			if !limiter.Allow() {
				s.metrics.AddEditRejected(ErrTooManyEdits.Code())
				sess.sendError(ErrTooManyEdits)
				continue
			}

			rec, err := actor.ApplyEdit(ctx, msg.Payload, sess.identity)
			if errors.Is(err, projects.ErrActorClosed) {
				sess.sendError(err)
				return
			}
			if err != nil {
				sess.sendError(err)
				continue
			}
			_ = sess.Send(types.Message{
				Type:      types.MessageTypeAck,
				ProjectID: actor.ID(),
				Version:   rec.Version,
			})
		case types.MessageTypeChat:
			if !chatLimiter.Allow() {
				sess.sendError(ErrTooManyMessages)
				continue
			}

			// the sender receives its message through the broadcast
			_, err := actor.PostChat(ctx, sess.identity, msg.Text)
			if errors.Is(err, projects.ErrActorClosed) {
				sess.sendError(err)
				return
			}
			if err != nil {
				sess.sendError(err)
			}
		case types.MessageTypeCursor:
			latest := msg.Cursor
			cursor.Store(&latest)
			throttler.ExecuteOrSchedule(func() {
				if err := actor.UpdateCursor(ctx, sess.identity, *cursor.Load()); err != nil {
					logger.Debugf("cursor: %v", err)
				}
			})
		default:
			sess.sendError(ErrUnknownMessage)
		}
	}
}
