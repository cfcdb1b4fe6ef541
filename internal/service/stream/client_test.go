package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StratView/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/stream", streamURL("http://localhost:8080/"))
	assert.Equal(t, "wss://example.com/api/stream", streamURL("https://example.com"))
	assert.Equal(t, "ws://host/api/stream", streamURL("ws://host"))
}

func TestReadDeliversSnapshotsUntilClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(models.Snapshot{State: models.WorkflowState{Phase: models.PhaseRunning, RunID: "r1"}})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(models.Snapshot{State: models.WorkflowState{Phase: models.PhaseSucceeded, RunID: "r1"}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := New(srv.URL, 0)
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	snaps, errs := c.Read(ctx)
	var phases []models.Phase
	for s := range snaps {
		phases = append(phases, s.State.Phase)
	}
	assert.Equal(t, []models.Phase{models.PhaseRunning, models.PhaseSucceeded}, phases)
	assert.NoError(t, <-errs)
}

func TestReadWithoutConnect(t *testing.T) {
	c := New("http://localhost:1", 0)
	snaps, errs := c.Read(context.Background())
	_, open := <-snaps
	assert.False(t, open)
	assert.Error(t, <-errs)
}
