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
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/projects"
)

// SuccessResponse is the body of a successful write that returns no data.
type SuccessResponse struct {
	Success string `json:"success"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	*types.Stats
	CachedAt time.Time `json:"cachedAt"`
}

// parseVersion parses a client version. Versions are floats on the wire.
func parseVersion(raw string) (float64, error) {
	version, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(version) || math.IsInf(version, 0) {
		return 0, invalid(errors.New("version must be a finite number: " + raw))
	}
	return version, nil
}

func parseID(raw string) (types.ID, error) {
	id := types.ID(raw)
	if err := id.Validate(); err != nil {
		return "", invalid(err)
	}
	return id, nil
}

func (s *Server) health(c *gin.Context) {
	if s.registry.Sealed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_SERVING"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.registry.Stats(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Stats: stats, CachedAt: time.Now()})
}

func (s *Server) freePasses(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", s.registry.FreePasses())
}

func (s *Server) setFreePasses(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := s.registry.SetFreePasses(body); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: "Successfully saved free passes!"})
}

// newProject creates the project of an external id, or returns the project
// already linked to it.
func (s *Server) newProject(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		abort(c, err)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	req := types.CreateProjectRequest{
		Owner:      c.Param("owner"),
		ExternalID: c.Param("externalId"),
		Title:      c.Query("title"),
		Body:       body,
	}
	if err := req.Validate(); err != nil {
		abort(c, invalid(err))
		return
	}

	actor, err := s.registry.CreateProject(c.Request.Context(), req.Owner, req.ExternalID, req.Body, req.Title)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": actor.ID()})
}

func (s *Server) linkExternal(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	owner := c.Param("owner")
	if err := types.ValidateIdentity(owner); err != nil {
		abort(c, invalid(err))
		return
	}

	if err := s.registry.Link(c.Request.Context(), id, c.Param("externalId"), owner); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: "Successfully linked!"})
}

func (s *Server) unlinkExternal(c *gin.Context) {
	if err := s.registry.Unlink(c.Request.Context(), c.Param("externalId")); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: "Successfully unlinked!"})
}

func (s *Server) resolveExternal(c *gin.Context) {
	id, err := s.registry.ResolveID(c.Param("externalId"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) projectTitle(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	project, err := s.registry.FindProject(id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": project.Title})
}

// sharedWith lists the owner first, then the identities the project is
// shared with.
func (s *Server) sharedWith(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	project, err := s.registry.FindProject(id)
	if err != nil {
		abort(c, err)
		return
	}

	list := []types.PresenceInfo{{Identity: project.Owner}}
	for _, identity := range project.SharedWith {
		list = append(list, types.PresenceInfo{Identity: identity})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) share(c *gin.Context) {
	id, to, err := shareParams(c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := s.registry.Share(c.Request.Context(), id, to); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: "Project successfully shared."})
}

func (s *Server) unshare(c *gin.Context) {
	id, to, err := shareParams(c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := s.registry.Unshare(c.Request.Context(), id, to); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: "Project successfully unshared."})
}

func shareParams(c *gin.Context) (types.ID, string, error) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return "", "", err
	}
	to := c.Param("to")
	if err := types.ValidateIdentity(to); err != nil {
		return "", "", invalid(err)
	}
	return id, to, nil
}

// changesSince answers a reconnecting client. Records that continue the
// client's version are sent as a plain array. When the client has to reload
// the snapshot first, the records are sent as an indexed object flagged with
// forceReload.
func (s *Server) changesSince(c *gin.Context) {
	version, err := parseVersion(c.Param("version"))
	if err != nil {
		abort(c, err)
		return
	}

	actor := projects.From(c.Request.Context())
	result, err := actor.Reconcile(c.Request.Context(), version)
	if err != nil {
		abort(c, err)
		return
	}

	records := result.Records
	if records == nil {
		records = []types.ChangeRecord{}
	}
	if !result.ForceReload {
		c.JSON(http.StatusOK, records)
		return
	}

	resp := gin.H{
		"length":          len(records),
		"forceReload":     true,
		"snapshotVersion": result.SnapshotVersion,
	}
	for i, rec := range records {
		resp[strconv.Itoa(i)] = rec
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) edit(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req types.EditRequest
	if err := json.Unmarshal(body, &req); err != nil {
		abort(c, invalid(err))
		return
	}
	if err := req.Validate(); err != nil {
		abort(c, invalid(err))
		return
	}

	actor := projects.From(c.Request.Context())
	rec, err := actor.ApplyEdit(c.Request.Context(), req.Payload, req.Author)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": rec.Version})
}

func (s *Server) projectJSON(c *gin.Context) {
	actor := projects.From(c.Request.Context())
	snapshot, err := actor.Snapshot(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"json": snapshot.Body, "version": snapshot.Version})
}

// projectSavedJSON stores a snapshot saved by a client. A snapshot that is
// not newer than the current one is ignored.
func (s *Server) projectSavedJSON(c *gin.Context) {
	version, err := parseVersion(c.Param("version"))
	if err != nil {
		abort(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor := projects.From(c.Request.Context())
	stored, err := actor.StoreClientSnapshot(c.Request.Context(), body, version)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Successfully saved the project!", "stored": stored})
}

func (s *Server) active(c *gin.Context) {
	actor := projects.From(c.Request.Context())
	infos, err := actor.Active(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	if infos == nil {
		infos = []types.PresenceInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) chat(c *gin.Context) {
	actor := projects.From(c.Request.Context())
	chat, err := actor.Chat(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}
