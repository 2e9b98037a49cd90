// Package httpapi is the request/response surface around the routing core:
// account issuance, durable message history, chat summaries, and attachment
// uploads. It owns no live-connection state; everything real-time goes
// through the ws package.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-relay/auth"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	users       repositories.IUserRepository
	tracker     *runtime.Tracker
	verifier    *auth.Verifier
	monitor     *observability.RelayMonitor
	uploadDir   string
	maxUpload   int64
}

func NewServer(log *slog.Logger, authService services.IAuthService, chatService services.IChatService,
	users repositories.IUserRepository, tracker *runtime.Tracker, verifier *auth.Verifier,
	monitor *observability.RelayMonitor, uploadDir string, maxUpload int64) *Server {
	return &Server{
		log:         log,
		authService: authService,
		chatService: chatService,
		users:       users,
		tracker:     tracker,
		verifier:    verifier,
		monitor:     monitor,
		uploadDir:   uploadDir,
		maxUpload:   maxUpload,
	}
}

// Routes registers every REST endpoint on the mux. Protected routes sit
// behind the bearer middleware.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/profile", s.withAuth(s.handleGetProfile))
	mux.Handle("POST /api/auth/profile", s.withAuth(s.handleUpdateProfile))
	mux.Handle("GET /api/users/search", s.withAuth(s.handleSearchUsers))
	mux.Handle("GET /api/users/{id}", s.withAuth(s.handleGetUser))
	mux.Handle("GET /api/chats", s.withAuth(s.handleListChats))
	mux.Handle("POST /api/chats/create", s.withAuth(s.handleCreateChat))
	mux.Handle("GET /api/messages/{peer}", s.withAuth(s.handleGetMessages))
	mux.Handle("POST /api/messages/send", s.withAuth(s.handleSendMessage))
	mux.Handle("POST /api/messages/{id}/delete", s.withAuth(s.handleDeleteMessage))
	mux.Handle("POST /api/upload/image", s.withAuth(s.handleUploadImage))
	mux.HandleFunc("GET /api/images/{name}", s.handleGetImage)
	mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
