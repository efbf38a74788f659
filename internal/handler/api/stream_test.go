package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

func TestRunStreamBroadcast(t *testing.T) {
	stream := NewRunStream(xlogger.Nop())
	srv := xhttp.NewServer(xlogger.Nop(), []xhttp.Handler{stream})
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/runs"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return stream.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	stream.Notify(context.Background(), models.RunSummary{RunID: "r-1", Version: "api", Status: models.RunCompleted, Records: 7})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev RunEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "run_completed", ev.Type)
	assert.Equal(t, "r-1", ev.Run.RunID)
	assert.Equal(t, 7, ev.Run.Records)

	stream.Close()
	assert.Zero(t, stream.Subscribers())
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestRunStreamDropsSlowSubscriber(t *testing.T) {
	stream := NewRunStream(xlogger.Nop())
	sub := &subscriber{send: make(chan []byte, 1)}
	stream.clients[sub] = struct{}{}

	stream.Notify(context.Background(), models.RunSummary{RunID: "a"})
	assert.Equal(t, 1, stream.Subscribers())
	stream.Notify(context.Background(), models.RunSummary{RunID: "b"})
	assert.Zero(t, stream.Subscribers())

	_, ok := <-sub.send
	assert.True(t, ok)
	_, ok = <-sub.send
	assert.False(t, ok)
}
