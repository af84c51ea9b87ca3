package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtechee/platform/dispatch"
)

func TestWebSocketReceivesJobUpdates(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())

	go srv.Run()
	srv.startJobUpdateBroadcaster()

	httpSrv := httptest.NewServer(srv.testMux())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the hub to register the client before enqueueing.
	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	job, err := dispatch.NewJob("notify.email", "test:ws", nil, 1)
	require.NoError(t, err)
	require.NoError(t, srv.queue.Enqueue(job))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg JobUpdateMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "job_update", msg.Type)
	require.NotNil(t, msg.Job)
	assert.Equal(t, job.ID, msg.Job.ID)
	assert.Equal(t, dispatch.JobStatusQueued, msg.Job.Status)
}

func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())

	go srv.Run()

	httpSrv := httptest.NewServer(srv.testMux())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}

func TestStopCompletesWithConnectedClients(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())

	go srv.Run()

	httpSrv := httptest.NewServer(srv.testMux())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Shutdown must not stall waiting on pumps that lost the
	// unregister race against the hub exiting.
	done := make(chan struct{})
	go func() {
		assert.NoError(t, srv.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not complete with a connected client")
	}
	assert.Zero(t, srv.clientCount())
}
