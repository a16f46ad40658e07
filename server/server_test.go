package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agent-navigator/navgraph"
	"agent-navigator/pathservice"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	server  *Server
	service *pathservice.Service
	http    *httptest.Server
}

// newHarness serves a 5x5x5 cube with two workers and a running router.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	g, err := navgraph.BuildGrid(navgraph.GridSpec{Cols: 5, Rows: 5, Layers: 5, Spacing: 1})
	require.NoError(t, err)

	service := pathservice.New(g, 2)
	srv := New(service, append([]Option{WithPollInterval(time.Millisecond)}, opts...)...)
	ts := httptest.NewServer(srv)

	ctx, cancel := context.WithCancel(context.Background())
	var router conc.WaitGroup
	router.Go(func() { srv.Router().Run(ctx) })

	t.Cleanup(func() {
		srv.CloseStreams()
		ts.Close()
		cancel()
		router.Wait()
		require.NoError(t, service.Close())
	})
	return &harness{server: srv, service: service, http: ts}
}

func (h *harness) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRoute(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/route", RouteRequest{Start: navgraph.Vec3{}, End: navgraph.Vec3{X: 4, Y: 4, Z: 4}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	route := decode[RouteResponse](t, resp)
	require.True(t, route.Success)
	require.Len(t, route.Path, 13)
	require.InDelta(t, 12.0, route.Cost, 1e-9)
	require.InDelta(t, 12.0, route.Distance, 1e-9)
	require.Positive(t, route.Expanded)
}

func TestRouteNotFound(t *testing.T) {
	h := newHarness(t, WithSnapTolerance(0.5))

	resp := h.post(t, "/route", RouteRequest{Start: navgraph.Vec3{}, End: navgraph.Vec3{X: 40}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	route := decode[RouteResponse](t, resp)
	require.False(t, route.Success)
	require.Empty(t, route.Path)
	require.Equal(t, "No path found", route.Message)
}

func TestRouteBadRequests(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.http.URL+"/route", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.get(t, "/route")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPreflight(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/paths", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "POST, GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestSubmitAndPollResults(t *testing.T) {
	h := newHarness(t)

	queries := make([]pathservice.Query, 20)
	for i := range queries {
		queries[i] = pathservice.Query{Start: navgraph.Vec3{}, Goal: navgraph.Vec3{X: float64(i % 5), Y: 4}}
	}
	resp := h.post(t, "/paths", SubmitRequest{Queries: queries})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := decode[SubmitResponse](t, resp)
	require.Len(t, submitted.IDs, len(queries))

	want := make(map[pathservice.RequestID]int, len(queries))
	for i, id := range submitted.IDs {
		want[id] = i
	}

	err := backoff.Retry(func() error {
		results := decode[ResultsResponse](t, h.get(t, "/paths/results"))
		for _, r := range results.Results {
			i, ok := want[r.ID]
			if !ok {
				return backoff.Permanent(errors.New("unexpected result id"))
			}
			if !r.Found() || r.Waypoints[len(r.Waypoints)-1] != queries[i].Goal {
				return backoff.Permanent(errors.New("wrong route"))
			}
			delete(want, r.ID)
		}
		if len(want) > 0 {
			return errors.New("results pending")
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Millisecond), 2000))
	require.NoError(t, err)
}

func TestSubmitBadRequest(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.http.URL+"/paths", "application/json", strings.NewReader(`{"queries": 3}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBatchLimit(t *testing.T) {
	h := newHarness(t)
	oversized := SubmitRequest{Queries: make([]pathservice.Query, maxBatch+1)}

	resp := h.post(t, "/paths", oversized)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, h.service.Pending())

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/paths/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	require.NoError(t, conn.WriteJSON(oversized))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, messageError, msg.Type)
	require.Equal(t, "too many queries", msg.Error)

	// the stream stays open for a batch within the limit
	require.NoError(t, conn.WriteJSON(SubmitRequest{Queries: make([]pathservice.Query, maxBatch)}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, messageIDs, msg.Type)
	require.Len(t, msg.IDs, maxBatch)
}

func TestSubmitAfterServiceClosed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.service.Close())

	resp := h.post(t, "/paths", SubmitRequest{Queries: []pathservice.Query{{}}})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStream(t *testing.T) {
	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/paths/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	queries := []pathservice.Query{
		{Start: navgraph.Vec3{}, Goal: navgraph.Vec3{X: 4}},
		{Start: navgraph.Vec3{X: 4}, Goal: navgraph.Vec3{Y: 4, Z: 4}},
		{Start: navgraph.Vec3{Z: 2}, Goal: navgraph.Vec3{Z: 2}},
	}
	require.NoError(t, conn.WriteJSON(SubmitRequest{Queries: queries}))

	var ids streamMessage
	require.NoError(t, conn.ReadJSON(&ids))
	require.Equal(t, messageIDs, ids.Type)
	require.Len(t, ids.IDs, len(queries))

	pending := make(map[pathservice.RequestID]struct{})
	for _, id := range ids.IDs {
		pending[id] = struct{}{}
	}
	for len(pending) > 0 {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, messageResult, msg.Type)
		require.NotNil(t, msg.Result)
		require.True(t, msg.Result.Found())
		_, ok := pending[msg.Result.ID]
		require.True(t, ok, "result %d not requested on this stream", msg.Result.ID)
		delete(pending, msg.Result.ID)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var bad streamMessage
	require.NoError(t, conn.ReadJSON(&bad))
	require.Equal(t, messageError, bad.Type)

	mailbox := decode[ResultsResponse](t, h.get(t, "/paths/results"))
	require.Empty(t, mailbox.Results, "streamed results never reach the mailbox")
}

func TestGraphLines(t *testing.T) {
	h := newHarness(t)

	resp := h.get(t, "/graph/lines")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	// every grid link is bidirectional and emitted once
	require.Len(t, fc.Features, 3*4*25)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	health := decode[map[string]any](t, h.get(t, "/health"))
	require.Equal(t, "ready", health["status"])
	require.Equal(t, 125.0, health["nodes"])
	require.Equal(t, 2.0, health["workers"])
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/paths", SubmitRequest{Queries: []pathservice.Query{{}}})

	resp := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "navigator_path_requests_submitted_total")
}
