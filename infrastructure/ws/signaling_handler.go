package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
)

// SignalingHandler runs the WebRTC relay protocol: the first frame must be
// a register command naming the client's identity, every later frame is an
// opaque payload forwarded verbatim to its target with the sender stamped.
// The relay never interprets payloads. An unknown target is logged and
// dropped without telling the sender.
type SignalingHandler struct {
	log        *slog.Logger
	registry   *runtime.Registry
	router     *runtime.Router
	monitor    *observability.RelayMonitor
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewSignalingHandler(log *slog.Logger, registry *runtime.Registry, router *runtime.Router,
	monitor *observability.RelayMonitor, bufferSize int) *SignalingHandler {
	return &SignalingHandler{
		log:        log,
		registry:   registry,
		router:     router,
		monitor:    monitor,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *SignalingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	var identity string
	defer func() {
		session.Close()
		if identity != "" {
			h.registry.Unregister(identity, session)
			h.log.Info("Signaling peer unregistered", "user_id", identity)
		}
	}()

	client.ReadLoop(func(raw []byte) error {
		if identity == "" {
			id, err := h.register(ctx, session, raw)
			if err != nil {
				return err
			}
			identity = id
			return nil
		}
		h.forward(ctx, identity, raw)
		return nil
	})
}

// register handles the mandatory first frame. A duplicate identity is a
// protocol error here, not a takeover: signaling clients pick their own id
// and a second registration is refused.
func (h *SignalingHandler) register(ctx context.Context, session *sink.SessionSink, raw []byte) (string, error) {
	kind, cmd, err := event.DecodeInbound(raw)
	if err != nil || kind != event.TypeRegister {
		h.log.Warn("First frame was not register", "type", kind)
		return "", fmt.Errorf("expected register handshake")
	}

	reg := cmd.(event.Register)
	if reg.UserID == "" {
		_ = session.Consume(ctx, event.NewErrorNotice("Invalid or duplicate user ID"))
		return "", fmt.Errorf("empty user id")
	}
	if err := h.registry.RegisterIfAbsent(reg.UserID, session); err != nil {
		h.log.Warn("Signaling registration refused", "user_id", reg.UserID, "error", err)
		_ = session.Consume(ctx, event.NewErrorNotice("Invalid or duplicate user ID"))
		return "", err
	}

	h.log.Info("Signaling peer registered", "user_id", reg.UserID)
	_ = session.Consume(ctx, event.NewRegisterOK())
	return reg.UserID, nil
}

func (h *SignalingHandler) forward(ctx context.Context, identity string, raw []byte) {
	var payload event.Signaling
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.log.Error("Invalid signaling payload", "sender", identity, "error", err)
		return
	}
	if payload.TargetID == "" {
		h.log.Warn("Signaling payload without target", "sender", identity, "kind", payload.Kind)
		return
	}
	if h.router.Route(ctx, payload.Stamped(identity)) == runtime.Delivered {
		h.log.Info("Forwarded signaling payload",
			"sender", identity, "target", payload.TargetID, "kind", payload.Kind)
	}
}
