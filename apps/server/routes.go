package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atultiwari1305/coon/pkg/auth"
	"github.com/atultiwari1305/coon/pkg/channel"
	"github.com/atultiwari1305/coon/pkg/chat"
	"github.com/atultiwari1305/coon/pkg/model"
	"github.com/atultiwari1305/coon/pkg/store"
)

type contextKey string

const userKey contextKey = "user"

func (s *server) router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.clientURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: s.clientURL != "*",
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.HandleFunc("/ws", s.serveWs)

	r.Route("/api/channels", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/joined", s.handleJoinedChannels)
		r.Get("/joined/{userId}", s.handleJoinedChannels)
		r.Post("/join", s.handleJoinChannel)
		r.Post("/create", s.handleCreateChannel)
		r.Get("/search", s.handleSearchChannels)
		r.Get("/info/{channelName}", s.handleChannelInfo)
		r.Post("/leave", s.handleLeaveChannel)
		r.Post("/delete", s.handleDeleteChannel)
		r.Post("/clear-messages", s.handleClearMessages)
		r.Delete("/delete-message/{messageId}", s.handleDeleteMessage)
	})

	return r
}

// requireAuth validates the bearer token and stores the caller's identity
// in the request context. The authenticated identity is the one used for
// authorization; identity fields in request bodies are legacy and ignored.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		claims, err := s.auth.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) string {
	user, _ := r.Context().Value(userKey).(string)
	return user
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	UserID string `json:"user_id"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// handleLogin mints a token. Clients that bring no identity get an
// anonymous one.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = auth.AnonymousID()
	}

	token, err := s.auth.GenerateToken(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: userID})
}

func (s *server) handleJoinedChannels(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	// The path parameter is legacy; it may only name the caller, since
	// Joined auto-enrolls the user into general.
	if p := chi.URLParam(r, "userId"); p != "" && p != userID {
		writeError(w, http.StatusForbidden, "Cannot list channels for another user")
		return
	}

	channels, err := s.dir.Joined(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("list joined channels")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if channels == nil {
		channels = []model.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

type channelRequest struct {
	ChannelName string `json:"channelName"`
	AccessType  string `json:"accessType"`
}

func (s *server) handleJoinChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" {
		writeError(w, http.StatusBadRequest, "Missing channelName")
		return
	}

	ch, err := s.dir.Join(r.Context(), req.ChannelName, requestUser(r))
	if err != nil {
		s.log.Error().Err(err).Str("channel", req.ChannelName).Msg("join channel")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Joined successfully",
		"adminId": ch.AdminID,
	})
}

func (s *server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" || req.AccessType == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	access := model.AccessType(req.AccessType)
	switch access {
	case model.AccessPublic, model.AccessProtected, model.AccessInvite:
	default:
		writeError(w, http.StatusBadRequest, "Invalid accessType")
		return
	}

	ch, err := s.dir.Create(r.Context(), req.ChannelName, requestUser(r), access)
	if errors.Is(err, channel.ErrExists) {
		writeError(w, http.StatusConflict, "Channel name already exists")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("channel", req.ChannelName).Msg("create channel")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Channel created",
		"channel": ch,
	})
}

func (s *server) handleSearchChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.dir.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.log.Error().Err(err).Msg("search channels")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if channels == nil {
		channels = []model.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

func (s *server) handleChannelInfo(w http.ResponseWriter, r *http.Request) {
	ch, err := s.dir.Info(r.Context(), chi.URLParam(r, "channelName"))
	if errors.Is(err, channel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Channel not found or deleted")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("channel info")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channel": ch})
}

func (s *server) handleLeaveChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" {
		writeError(w, http.StatusBadRequest, "Missing channelName")
		return
	}
	userID := requestUser(r)

	if req.ChannelName == model.GeneralChannel {
		writeError(w, http.StatusForbidden, "Cannot leave the general channel")
		return
	}

	ch, err := s.dir.Info(r.Context(), req.ChannelName)
	if errors.Is(err, channel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	// The admin leaving takes the channel and its history with them.
	if ch.AdminID == userID {
		s.removeChannel(r.Context(), req.ChannelName, userID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Admin left; channel and messages deleted"})
		return
	}

	switch err := s.dir.Leave(r.Context(), req.ChannelName, userID); {
	case errors.Is(err, channel.ErrForbidden):
		writeError(w, http.StatusForbidden, "Cannot leave the general channel")
	case errors.Is(err, channel.ErrNotMember):
		writeError(w, http.StatusBadRequest, "User is not a member of this channel")
	case err != nil:
		s.log.Error().Err(err).Str("channel", req.ChannelName).Msg("leave channel")
		writeError(w, http.StatusInternalServerError, "Server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Left channel successfully"})
	}
}

func (s *server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" {
		writeError(w, http.StatusBadRequest, "Missing channelName")
		return
	}
	if req.ChannelName == model.GeneralChannel {
		writeError(w, http.StatusForbidden, "The general channel cannot be deleted")
		return
	}

	ch, err := s.dir.Info(r.Context(), req.ChannelName)
	if errors.Is(err, channel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Channel not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if ch.AdminID != requestUser(r) {
		writeError(w, http.StatusForbidden, "Only admin can delete this channel")
		return
	}

	s.removeChannel(r.Context(), req.ChannelName, requestUser(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel and its messages deleted"})
}

// removeChannel purges the channel's messages through the core (so caches
// invalidate and subscribers hear channel_cleared) and soft-deletes the
// directory record. Caller has already verified the admin.
func (s *server) removeChannel(ctx context.Context, name, adminID string) {
	if err := s.svc.ClearRoom(ctx, name, adminID); err != nil {
		s.log.Error().Err(err).Str("channel", name).Msg("purge on channel delete")
	}
	if err := s.dir.Delete(ctx, name, adminID); err != nil {
		s.log.Error().Err(err).Str("channel", name).Msg("delete channel record")
	}
}

func (s *server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" {
		writeError(w, http.StatusBadRequest, "Missing channelName")
		return
	}

	switch err := s.svc.ClearRoom(r.Context(), req.ChannelName, requestUser(r)); {
	case errors.Is(err, channel.ErrNotFound):
		writeError(w, http.StatusNotFound, "Channel not found")
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only admin can clear messages")
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "Server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "All messages cleared"})
	}
}

func (s *server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}

	switch err := s.svc.DeleteMessage(r.Context(), messageID, requestUser(r)); {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Message not found")
	case errors.Is(err, channel.ErrNotFound):
		writeError(w, http.StatusNotFound, "Channel not found")
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not authorized to delete this message")
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "Server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
