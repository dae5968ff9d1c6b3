package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/photobingo/internal/bingo"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// readUntil reads JSON messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestPlayerSocketReceivesPhase(t *testing.T) {
	_, srv := newTestGame(t)
	admin := newPlayerClient(t)

	conn := dialWS(t, srv.URL+"/ws")

	msg := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "phase" })
	assert.Equal(t, "pending", msg["phase"])

	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodPut, srv.URL+"/api/admin/phase", phaseRequest{State: "active"}, nil))

	msg = readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "phase" && m["phase"] == "active" })
	assert.Equal(t, "active", msg["phase"])
}

func TestAdminSocketReceivesStats(t *testing.T) {
	_, srv := newTestGame(t)

	conn := dialWS(t, srv.URL+"/admin/ws")

	msg := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "stats" })
	assert.EqualValues(t, 0, msg["users"])

	join(t, srv, newPlayerClient(t), "Margaret")

	msg = readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "stats" && m["users"] == float64(1) })
	assert.EqualValues(t, 0, msg["photos"])
	assert.EqualValues(t, 0, msg["bingos"])
}

func TestAdminEventStream(t *testing.T) {
	_, srv := newTestGame(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/events", nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				select {
				case lines <- data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	next := func() StatsMessage {
		t.Helper()
		for {
			select {
			case data, ok := <-lines:
				require.True(t, ok, "stream closed")
				var msg StatsMessage
				require.NoError(t, json.Unmarshal([]byte(data), &msg))
				if msg.Type == "stats" {
					return msg
				}
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for event")
			}
		}
	}

	first := next()
	assert.Equal(t, bingo.Pending, first.Phase)
	assert.Equal(t, 1, first.Online)

	join(t, srv, newPlayerClient(t), "Katherine")

	msg := next()
	for msg.Users != 1 {
		msg = next()
	}
	assert.Equal(t, bingo.Pending, msg.Phase)
}

func TestSetPhaseValidation(t *testing.T) {
	_, srv := newTestGame(t)
	c := newPlayerClient(t)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/phase", phaseRequest{State: "paused"}, &body))
	assert.Contains(t, body["error"], "paused")

	var msg PhaseMessage
	assert.Equal(t, http.StatusOK, doJSON(t, c, http.MethodPut, srv.URL+"/api/admin/phase", phaseRequest{State: "finished"}, &msg))
	assert.Equal(t, bingo.Finished, msg.Phase)

	var state StatsMessage
	require.Equal(t, http.StatusOK, doJSON(t, c, http.MethodGet, srv.URL+"/api/admin/state", nil, &state))
	assert.Equal(t, bingo.Finished, state.Phase)
}

func TestReset(t *testing.T) {
	g, srv := newTestGame(t)
	admin := newPlayerClient(t)
	c := newPlayerClient(t)

	v := join(t, srv, c, "Hedy")
	code, _ := uploadPhoto(t, c, srv.URL+"/api/board/"+v.Cells[0].ID+"/photo", pngHeader)
	require.Equal(t, http.StatusOK, code)

	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodPut, srv.URL+"/api/admin/phase", phaseRequest{State: "finished"}, nil))

	var res resetResponse
	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/reset", nil, &res))
	assert.Equal(t, bingo.Pending, res.Phase)
	assert.Equal(t, 1, res.PhotosRemoved)

	var state StatsMessage
	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/state", nil, &state))
	assert.Equal(t, bingo.Pending, state.Phase)
	assert.Zero(t, state.Users)
	assert.Zero(t, state.Photos)
	assert.Zero(t, state.Bingos)

	keys, err := g.bucket.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, c, http.MethodGet, srv.URL+"/api/board", nil, nil))
}

func TestResetReopensGame(t *testing.T) {
	_, srv := newTestGame(t)
	admin := newPlayerClient(t)

	join(t, srv, newPlayerClient(t), "Ada")
	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodPut, srv.URL+"/api/admin/phase", phaseRequest{State: "active"}, nil))

	var res resetResponse
	require.Equal(t, http.StatusOK, doJSON(t, admin, http.MethodPost, srv.URL+"/api/admin/reset", nil, &res))
	assert.Equal(t, bingo.Pending, res.Phase)

	c := newPlayerClient(t)
	v := join(t, srv, c, "Ada")
	assert.Equal(t, bingo.Pending, v.Phase)

	code, _ := uploadPhoto(t, c, srv.URL+"/api/board/"+v.Cells[0].ID+"/photo", pngHeader)
	assert.Equal(t, http.StatusOK, code)
}

func TestMiscRoutes(t *testing.T) {
	_, srv := newTestGame(t)

	for path, want := range map[string]string{
		"/healthz":       "Ok",
		"/version":       "photobingo v" + releaseVersion,
		"/robots.txt":    "Disallow: /photos/",
		"/":              `src="/assets/app.js"`,
		"/admin":         `src="/assets/admin.js"`,
		"/assets/app.js": "/api/board",
	} {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err, path)

		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, string(body), want, path)
		assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"), path)
	}

	res, err := http.Get(srv.URL + "/assets/../clues.json")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
