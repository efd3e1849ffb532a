package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/clips"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	pair, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	pair, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	var clip model.Clip
	if !s.readJSON(w, r, &clip) {
		return
	}

	res, err := s.clips.Save(r.Context(), userID(r), deviceID(r), &clip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Duplicates are acknowledged but not re-broadcast.
	if res.Created {
		s.hub.BroadcastClipSaved(res.Clip, sessionID(r), false)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"clip":      res.Clip,
		"uploadUrl": res.UploadURL,
	})
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	opts := clips.ListOptions{
		Search: r.URL.Query().Get("search"),
		Type:   r.URL.Query().Get("type"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("pinned"); v != "" {
		pinned, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid pinned", http.StatusBadRequest)
			return
		}
		opts.Pinned = &pinned
	}

	result, err := s.clips.List(r.Context(), userID(r), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result == nil {
		result = []*model.Clip{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"clips": result})
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	clip, err := s.clips.Delete(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.BroadcastClipDeleted(clip, sessionID(r))
	s.writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleSetPinned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pinned bool `json:"pinned"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	clip, err := s.clips.SetPinned(r.Context(), userID(r), r.PathValue("id"), req.Pinned)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.BroadcastClipSaved(clip, sessionID(r), true)
	s.writeJSON(w, http.StatusOK, map[string]any{"clip": clip})
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	clip, err := s.clips.SetPassword(r.Context(), userID(r), r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.BroadcastClipSaved(clip, sessionID(r), true)
	s.writeJSON(w, http.StatusOK, map[string]any{"clip": clip})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	content, err := s.clips.Unlock(r.Context(), userID(r), r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleRemovePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	clip, err := s.clips.RemovePassword(r.Context(), userID(r), r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.BroadcastClipSaved(clip, sessionID(r), true)
	s.writeJSON(w, http.StatusOK, map[string]any{"clip": clip})
}

func (s *Server) handleContentURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.clips.ContentURL(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// --- helpers below ---

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "response encode error", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrOwnershipRejected):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrRefreshTokenExpired):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
