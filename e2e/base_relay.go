package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests.
// The suite targets a live deployment; without RELAY_ADDR it is skipped.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping end-to-end suite")
	}
}

// Step prints a colorized header for the test step in logs
func (s *BaseRelaySuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// PostJSON sends an authenticated JSON request and decodes the response,
// with timing and optional full-body logging.
func (s *BaseRelaySuite) PostJSON(t *testing.T, path, token string, body any) map[string]any {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	request, err := http.NewRequest(http.MethodPost, "http://"+s.Config.RelayAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err, "Failed to reach relay at "+s.Config.RelayAddr)
	defer response.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(response.Body).Decode(&decoded))

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "POST %s [%d] in %v", path, response.StatusCode, time.Since(start))
	// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(payload))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		dump, _ := json.MarshalIndent(decoded, "", "  ")
		fmt.Fprintln(&logBuilder, string(dump))
	}
	t.Log(logBuilder.String())

	s.Require().Less(response.StatusCode, 300, "POST "+path+" failed")
	return decoded
}

// DialSocket opens a websocket against the relay and closes it with the test.
func (s *BaseRelaySuite) DialSocket(t *testing.T, addr, path string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	s.Require().NoError(err, "Failed to dial websocket at "+addr+path)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// AwaitFrame reads frames until one carries the wanted type tag, skipping
// interleaved presence traffic from other suite runs.
func (s *BaseRelaySuite) AwaitFrame(conn *websocket.Conn, kind string, timeout time.Duration) map[string]any {
	deadline := time.Now().Add(timeout)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var frame map[string]any
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for %q frame", kind)
		if frame["type"] == kind {
			return frame
		}
	}
}
