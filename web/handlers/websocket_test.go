package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/web/handlers"
)

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestWebSocketHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil, "localhost:6464", "127.0.0.1:6464")
	defer hub.Stop()

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, upgradeRequest("http://evil.com"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Forbidden")

	w = httptest.NewRecorder()
	hub.ServeHTTP(w, upgradeRequest("http://localhost:6464.evil.com"))
	assert.Equal(t, http.StatusForbidden, w.Code, "host must match exactly")
}

func TestWebSocketHub_BroadcastState(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil)
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastState(engine.State{SubjectUUID: "u-home", Phase: engine.PhaseDone})

	select {
	case msg := <-received:
		var decoded struct {
			Type string       `json:"type"`
			Data engine.State `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &decoded))
		assert.Equal(t, handlers.MessageRelationsState, decoded.Type)
		assert.Equal(t, "u-home", decoded.Data.SubjectUUID)
		assert.Equal(t, engine.PhaseDone, decoded.Data.Phase)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for broadcast message")
	}
}

func TestWebSocketHub_DropsSlowClients(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil)
	go hub.Run()
	defer hub.Stop()

	full := make(chan []byte)
	hub.Register(&handlers.MockClient{SendChan: full})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(map[string]string{"type": "ping"})
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
