package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

func newAdminTestServer(t *testing.T, ids ...string) (*httptest.Server, *stubFetcher, *Daemon) {
	t.Helper()
	fetcher := newStubFetcher()
	d, _ := newTestDaemon(t, testConfig(ids...), fetcher)
	require.NotNil(t, d.admin)
	srv := httptest.NewServer(d.admin.Handler())
	t.Cleanup(srv.Close)
	return srv, fetcher, d
}

func doRequest(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestAdmin_HealthReflectsDaemonStatus(t *testing.T) {
	srv, _, _ := newAdminTestServer(t)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, "daemon", health.Checks[0].Name)
}

func TestAdmin_TrackThenReadBack(t *testing.T) {
	srv, fetcher, _ := newAdminTestServer(t, "730")
	fetcher.set("730", generation(10, "a"))

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/records/730")
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing tracked yet")

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/records/730/report")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/records/730/track")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tracked TrackResponse
	require.NoError(t, json.Unmarshal(body, &tracked))
	assert.True(t, tracked.Rotated)
	assert.Equal(t, "730", tracked.Identifier)
	assert.NotEmpty(t, tracked.CycleID)

	fetcher.set("730", generation(11, "b"))
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/records/730/track")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/records/730")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "old")
	assert.Contains(t, doc, "new")
	var rec snapshot.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, int64(10), rec.Old.ChangeNumber)
	assert.Equal(t, int64(11), rec.Current.ChangeNumber)

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/records/730/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep snapshot.ChangeReport
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, int64(11), rep.LatestChangeNumber)
	assert.Equal(t, int64(10), rep.OldChangeNumber)
	assert.Equal(t, snapshot.StringValue("b"), rep.DepotsNew["731"]["public"].GID)

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/reports/730")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, string(body), "<title>depotwatch: 730</title>")
	assert.Contains(t, string(body), "<table>")
}

func TestAdmin_TrackUnknownIdentifier(t *testing.T) {
	srv, fetcher, _ := newAdminTestServer(t)
	fetcher.errs["999"] = errors.NotFoundError("identifier not found").Build()

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/records/999/track")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var payload errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, string(errors.CategoryNotFound), payload.Code)
}

func TestAdmin_InvalidIdentifier(t *testing.T) {
	srv, _, _ := newAdminTestServer(t)

	for _, path := range []string{"/api/records/bad%20id", "/api/records/bad%20id/report", "/reports/bad%20id", "/api/status/bad%20id"} {
		resp, _ := doRequest(t, http.MethodGet, srv.URL+path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestAdmin_Status(t *testing.T) {
	srv, fetcher, d := newAdminTestServer(t, "730")
	fetcher.set("730", generation(10, "a"))
	require.NoError(t, d.TrackAll(t.Context()))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusSnapshot
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, StatusStopped, status.Status)
	assert.Equal(t, []string{"730"}, status.Identifiers)
	assert.Equal(t, "memory", status.Backend)
	require.Len(t, status.Cycles, 1)
	assert.Equal(t, OutcomeRotated, status.Cycles[0].Outcome)
	assert.Equal(t, int64(10), status.Cycles[0].ChangeNumber)
}

func TestAdmin_CycleStatusByIdentifier(t *testing.T) {
	srv, fetcher, d := newAdminTestServer(t, "730")

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/status/730")
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "no cycle yet")

	fetcher.set("730", generation(10, "a"))
	require.NoError(t, d.TrackAll(t.Context()))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/status/730")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st CycleStatus
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "730", st.Identifier)
	assert.Equal(t, OutcomeRotated, st.Outcome)
	assert.Equal(t, int64(10), st.ChangeNumber)
	assert.Equal(t, 1, st.Runs)
}

func TestAdmin_Metrics(t *testing.T) {
	srv, fetcher, d := newAdminTestServer(t, "730")
	fetcher.set("730", generation(10, "a"))
	require.NoError(t, d.TrackAll(t.Context()))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `depotwatch_cycles_total{outcome="rotated"} 1`)
	assert.Contains(t, string(body), `depotwatch_change_number{identifier="730"} 10`)
}
