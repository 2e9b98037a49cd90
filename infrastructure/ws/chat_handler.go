package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/sink"
)

// ChatHandler upgrades /ws connections and runs the chat session protocol:
// the first accepted command is authenticate; everything after routes
// through the presence-aware core.
type ChatHandler struct {
	log         *slog.Logger
	registry    *runtime.Registry
	tracker     *runtime.Tracker
	router      *runtime.Router
	chatService services.IChatService
	verifier    *auth.Verifier
	monitor     *observability.RelayMonitor
	bufferSize  int
	upgrader    websocket.Upgrader
}

func NewChatHandler(log *slog.Logger, registry *runtime.Registry, tracker *runtime.Tracker,
	router *runtime.Router, chatService services.IChatService, verifier *auth.Verifier,
	monitor *observability.RelayMonitor, bufferSize int) *ChatHandler {
	return &ChatHandler{
		log:         log,
		registry:    registry,
		tracker:     tracker,
		router:      router,
		chatService: chatService,
		verifier:    verifier,
		monitor:     monitor,
		bufferSize:  bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.monitor.IncrConnections()
	defer h.monitor.DecrConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := sink.NewSessionSink(h.log, h.bufferSize)
	client := NewClient(h.log, conn, session)
	go client.WritePump()

	state := &chatSession{handler: h, session: session}

	// Cleanup runs on every exit path: client close, transport fault, or
	// liveness timeout. The offline flip happens only if our binding was
	// still in place, so a displaced session never erases its successor.
	defer func() {
		session.Close()
		state.logout(ctx)
	}()

	client.ReadLoop(func(raw []byte) error {
		return state.handle(ctx, raw)
	})
}

// chatSession is the per-connection protocol state: empty identity until
// the authenticate handshake succeeds.
type chatSession struct {
	handler  *ChatHandler
	session  *sink.SessionSink
	identity string
}

func (s *chatSession) handle(ctx context.Context, raw []byte) error {
	h := s.handler

	kind, cmd, err := event.DecodeInbound(raw)
	if err != nil {
		// Malformed frames are connection-level noise, not a reason to
		// drop the session.
		h.log.Warn("Malformed inbound envelope", "error", err)
		return nil
	}

	if s.identity == "" && kind != event.TypeAuthenticate {
		h.log.Warn("Command before authentication", "type", kind)
		return nil
	}

	switch cmd := cmd.(type) {
	case event.Authenticate:
		return s.authenticate(ctx, cmd)
	case event.Typing:
		h.router.Route(ctx, event.NewUserTyping(s.identity, cmd.ReceiverID, cmd.Typing))
	case event.MessageRead:
		if err := h.chatService.MarkMessageRead(ctx, cmd.MessageID); err != nil {
			h.log.Warn("Read receipt failed", "message_id", cmd.MessageID, "error", err)
		}
	case event.GoOffline:
		// Explicit sign-out: drop the binding and broadcast offline, but
		// keep the transport open so the client can re-authenticate.
		s.logout(ctx)
	default:
		h.log.Warn("Unhandled inbound envelope", "type", kind)
	}
	return nil
}

func (s *chatSession) authenticate(ctx context.Context, cmd event.Authenticate) error {
	h := s.handler

	userID, err := h.verifier.Authenticate(cmd.Token)
	if err != nil {
		h.monitor.IncrAuthFailures()
		_ = s.session.Consume(ctx, event.NewAuthError("Invalid token"))
		// Refuse the session: no state was mutated, the connection closes.
		return fmt.Errorf("authentication refused: %w", err)
	}

	// Re-authenticating as someone else releases the previous identity
	// first; the old binding must not outlive this handshake.
	if s.identity != "" && s.identity != userID {
		s.logout(ctx)
	}

	s.identity = userID
	if displaced := h.registry.Register(userID, s.session); displaced {
		h.log.Info("Displaced previous session", "user_id", userID)
	}
	h.tracker.MarkOnline(ctx, userID)
	_ = s.session.Consume(ctx, event.NewAuthenticated(userID))
	return nil
}

func (s *chatSession) logout(ctx context.Context) {
	if s.identity == "" {
		return
	}
	h := s.handler
	if h.registry.Unregister(s.identity, s.session) {
		h.tracker.MarkOffline(ctx, s.identity, time.Now().UnixMilli())
	}
	s.identity = ""
}
