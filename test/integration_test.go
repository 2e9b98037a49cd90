package test

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/auth"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

const frameWait = 5 * time.Second

type relayFixture struct {
	server      *httptest.Server
	authService services.IAuthService
	chatService services.IChatService
}

func startRelay(t *testing.T) *relayFixture {
	t.Helper()
	// Reduced value log for testing (avoid gigabytes of preallocation)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)

	log := slog.Default()
	monitor := observability.NewRelayMonitor()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, monitor)
	tracker := runtime.NewTracker(log, router, repositories.NewStatusRepository(db))

	userRepository := repositories.NewUserRepository(db)
	verifier := auth.NewVerifier("integration-secret", time.Hour)
	authService := services.NewAuthService(userRepository, verifier)
	chatService := services.NewChatService(
		repositories.NewMessageRepository(db, log, lo.ToPtr(100)),
		repositories.NewChatRepository(db),
		router,
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewChatHandler(log, registry, tracker, router, chatService, verifier, monitor, 256))
	mux.Handle("/signaling", ws.NewSignalingHandler(log, registry, router, monitor, 256))
	httpapi.NewServer(log, authService, chatService, userRepository, tracker, verifier,
		monitor, t.TempDir(), 1<<20).Routes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return &relayFixture{server: server, authService: authService, chatService: chatService}
}

func (fx *relayFixture) signup(t *testing.T, email string) (token, userID string) {
	t.Helper()
	tok, id, err := fx.authService.Register(email, "ComplexPass123!")
	require.NoError(t, err)
	return string(tok), id
}

func (fx *relayFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// expect reads frames until one carries the wanted type tag. Interleaved
// frames of other types (presence fan-out races with direct replies) are
// skipped.
func expect(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(frameWait)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame map[string]any
		err := conn.ReadJSON(&frame)
		require.NoError(t, err, "waiting for %q frame", kind)
		if frame["type"] == kind {
			return frame
		}
	}
}

// connectChat authenticates and consumes the handshake frames: the self
// online broadcast arrives first, then the authenticated confirmation.
func (fx *relayFixture) connectChat(t *testing.T, token, userID string) *websocket.Conn {
	t.Helper()
	conn := fx.dial(t, "/ws")
	send(t, conn, map[string]any{"type": "authenticate", "token": token})
	online := expect(t, conn, "user_online")
	require.Equal(t, userID, online["user_id"])
	frame := expect(t, conn, "authenticated")
	require.Equal(t, userID, frame["user_id"])
	return conn
}

func Test_Chat_Scenario(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	aliceToken, aliceID := fx.signup(t, "alice@example.com")
	bobToken, bobID := fx.signup(t, "bob@example.com")

	// --- STEP 1: PRESENCE ON CONNECT ---
	alice := fx.connectChat(t, aliceToken, aliceID)
	bob := fx.connectChat(t, bobToken, bobID)

	// Alice sees bob come online
	frame := expect(t, alice, "user_online")
	req.Equal(bobID, frame["user_id"])

	// --- STEP 2: MESSAGE DELIVERY OVER REST + SOCKET ---
	message := fx.postJSON(t, "/api/messages/send", aliceToken, map[string]any{
		"receiver_id": bobID,
		"text":        "hello bob",
	})
	messageID := message["id"].(string)

	// The receiver and the sender's own session both get the live copy
	frame = expect(t, bob, "new_message")
	req.Equal("hello bob", frame["text"])
	req.Equal(aliceID, frame["sender_id"])
	expect(t, alice, "new_message")

	// --- STEP 3: TYPING INDICATOR ---
	send(t, alice, map[string]any{"type": "typing", "receiver_id": bobID, "typing": true})
	frame = expect(t, bob, "user_typing")
	req.Equal(aliceID, frame["user_id"])
	req.Equal(true, frame["typing"])

	// --- STEP 4: READ RECEIPT BACK TO THE SENDER ---
	send(t, bob, map[string]any{"type": "message_read", "message_id": messageID, "reader_id": bobID})
	frame = expect(t, alice, "message_status")
	req.Equal(messageID, frame["message_id"])
	req.Equal("read", frame["status"])

	// --- STEP 5: DISCONNECT BROADCASTS OFFLINE ---
	req.NoError(alice.Close())
	frame = expect(t, bob, "user_offline")
	req.Equal(aliceID, frame["user_id"])
	req.Greater(frame["last_seen"].(float64), float64(0))
}

func Test_Chat_Rejects_Bad_Token(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	conn := fx.dial(t, "/ws")
	send(t, conn, map[string]any{"type": "authenticate", "token": "not-a-jwt"})

	frame := expect(t, conn, "auth_error")
	req.Equal("Invalid token", frame["error"])

	// The connection is refused and closed by the server
	req.NoError(conn.SetReadDeadline(time.Now().Add(frameWait)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		req.Fail("server kept the connection open after refusing authentication")
	}
}

func Test_Chat_Second_Login_Displaces_First(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	token, userID := fx.signup(t, "alice@example.com")

	first := fx.connectChat(t, token, userID)
	second := fx.connectChat(t, token, userID)

	// The first socket is closed by the displacement
	req.NoError(first.SetReadDeadline(time.Now().Add(frameWait)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// The surviving session still receives traffic
	_, peerID := fx.signup(t, "bob@example.com")
	_, err := fx.chatService.SendMessage(t.Context(), services.SendMessageCommand{
		SenderID: peerID, ReceiverID: userID, Text: "still here?",
	})
	req.NoError(err)
	frame := expect(t, second, "new_message")
	req.Equal("still here?", frame["text"])
}

func Test_Chat_Reauthentication_Releases_Previous_Identity(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	aliceToken, aliceID := fx.signup(t, "alice@example.com")
	bobToken, bobID := fx.signup(t, "bob@example.com")
	carolToken, carolID := fx.signup(t, "carol@example.com")

	observer := fx.connectChat(t, carolToken, carolID)

	// Given a socket authenticated as alice
	conn := fx.connectChat(t, aliceToken, aliceID)
	frame := expect(t, observer, "user_online")
	req.Equal(aliceID, frame["user_id"])

	// When the same socket re-authenticates as bob
	send(t, conn, map[string]any{"type": "authenticate", "token": bobToken})

	// Then alice goes offline before bob comes online
	frame = expect(t, observer, "user_offline")
	req.Equal(aliceID, frame["user_id"])
	frame = expect(t, observer, "user_online")
	req.Equal(bobID, frame["user_id"])
	expect(t, conn, "authenticated")

	// And closing the socket flips only bob, exactly once
	req.NoError(conn.Close())
	frame = expect(t, observer, "user_offline")
	req.Equal(bobID, frame["user_id"])

	// Alice's binding did not outlive the handshake
	alice := fx.getJSON(t, "/api/users/"+aliceID, carolToken)
	req.Equal(false, alice["online"])
	bob := fx.getJSON(t, "/api/users/"+bobID, carolToken)
	req.Equal(false, bob["online"])
}

func Test_Chat_Malformed_Frames_Keep_The_Connection(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	aliceToken, aliceID := fx.signup(t, "alice@example.com")
	bobToken, bobID := fx.signup(t, "bob@example.com")

	alice := fx.connectChat(t, aliceToken, aliceID)
	bob := fx.connectChat(t, bobToken, bobID)

	// Given noise on an authenticated socket: invalid JSON, a frame with no
	// type tag, and an unknown tag
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("this is not json")))
	send(t, alice, map[string]any{"text": "no tag here"})
	send(t, alice, map[string]any{"type": "mystery"})

	// Then the session still carries traffic afterward
	send(t, alice, map[string]any{"type": "typing", "receiver_id": bobID, "typing": true})
	frame := expect(t, bob, "user_typing")
	req.Equal(aliceID, frame["user_id"])
}

func Test_Signaling_Relay(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	caller := fx.dial(t, "/signaling")
	callee := fx.dial(t, "/signaling")

	send(t, caller, map[string]any{"type": "register", "userId": "caller"})
	expect(t, caller, "register_ok")
	send(t, callee, map[string]any{"type": "register", "userId": "callee"})
	expect(t, callee, "register_ok")

	// An opaque offer is forwarded verbatim with the sender stamped
	send(t, caller, map[string]any{
		"type":         "offer",
		"targetUserId": "callee",
		"sdp":          map[string]any{"type": "offer", "sdp": "v=0"},
	})

	frame := expect(t, callee, "offer")
	req.Equal("caller", frame["senderUserId"])
	req.Equal("callee", frame["targetUserId"])
	sdp := frame["sdp"].(map[string]any)
	req.Equal("v=0", sdp["sdp"])
}

func Test_Signaling_Duplicate_Identity_Refused(t *testing.T) {
	req := require.New(t)
	fx := startRelay(t)

	first := fx.dial(t, "/signaling")
	send(t, first, map[string]any{"type": "register", "userId": "peer"})
	expect(t, first, "register_ok")

	second := fx.dial(t, "/signaling")
	send(t, second, map[string]any{"type": "register", "userId": "peer"})
	frame := expect(t, second, "error")
	req.Equal("Invalid or duplicate user ID", frame["message"])
}

func (fx *relayFixture) getJSON(t *testing.T, path, token string) map[string]any {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, fx.server.URL+path, nil)
	require.NoError(t, err)
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&decoded))
	return decoded
}

func (fx *relayFixture) postJSON(t *testing.T, path, token string, body any) map[string]any {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	request, err := http.NewRequest(http.MethodPost, fx.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Less(t, response.StatusCode, 300,
		fmt.Sprintf("POST %s returned %d", path, response.StatusCode))

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&decoded))
	return decoded
}
