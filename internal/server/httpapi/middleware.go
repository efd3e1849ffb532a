package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Aphrodine-wq/clipsync/internal/common"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	deviceIDKey  contextKey = "deviceID"
	sessionIDKey contextKey = "sessionID"
)

// withAuth validates the bearer token and stores the user id and the
// originating device id in the request context. Expired tokens answer 401
// with a "token expired" body so the client knows a refresh may succeed.
func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AccessTokenHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		userID, err := s.users.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				http.Error(w, "token expired", http.StatusUnauthorized)
				return
			}
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, deviceIDKey, r.Header.Get(common.DeviceIDHeaderName))
		ctx = context.WithValue(ctx, sessionIDKey, r.Header.Get(common.SessionIDHeaderName))
		next(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func deviceID(r *http.Request) string {
	id, _ := r.Context().Value(deviceIDKey).(string)
	return id
}

// sessionID is the caller's real-time session id, empty when the client has
// not completed a handshake. Broadcasts use it to skip echoing a write back
// to its origin.
func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey).(string)
	return id
}
