package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/enhance"
	platformerrors "github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/internal/httpclient"
	platformtest "github.com/realtechee/platform/internal/testing"
	"github.com/realtechee/platform/leads"
	"github.com/realtechee/platform/notify"
)

// gqlStub fakes the data API: canned JSON responses keyed by operation
// substring, with every request recorded.
type gqlStub struct {
	t         *testing.T
	responses map[string]string
	requests  []gqlRequest
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (g *gqlStub) store() *dataapi.Store {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&req))
		g.requests = append(g.requests, req)

		for op, body := range g.responses {
			if strings.Contains(req.Query, op) {
				fmt.Fprint(w, body)
				return
			}
		}
		fmt.Fprint(w, `{"data": {}}`)
	}))
	g.t.Cleanup(srv.Close)

	client := dataapi.NewWithHTTP(srv.URL, "test-key", httpclient.WrapClient(srv.Client()), zap.NewNop().Sugar())
	return dataapi.NewStore(client)
}

func (g *gqlStub) requestsFor(op string) []gqlRequest {
	var matched []gqlRequest
	for _, req := range g.requests {
		if strings.Contains(req.Query, op) {
			matched = append(matched, req)
		}
	}
	return matched
}

func testConfig() *am.Config {
	return &am.Config{
		Server: am.Server{
			Port:           3001,
			AllowedOrigins: []string{"http://localhost"},
			AdminBaseURL:   "http://localhost:3001",
		},
		Notify: am.Notify{
			Debug:        true,
			SandboxEmail: "info@realtechee.com",
			SandboxPhone: "+15555550199",
		},
		Leads: am.Leads{RatePerMinute: 60, Burst: 100},
	}
}

// newTestServer assembles a full server against the stubbed data API and an
// in-memory job store. No listener is started; handlers are hit directly.
func newTestServer(t *testing.T, stub *gqlStub, cfg *am.Config) *Server {
	log := zap.NewNop().Sugar()
	conn := platformtest.CreateTestDB(t)
	queue := dispatch.NewQueue(conn)
	store := stub.store()

	notifier, err := notify.NewService(cfg.Notify, queue, log)
	require.NoError(t, err)

	enhancer := enhance.NewService(enhance.NewStoreSource(store), cfg.Enhance, log)
	leadSvc := leads.NewService(store, queue, log)

	srv := New(cfg, Deps{
		DB:         conn,
		Store:      store,
		Enhancer:   enhancer,
		Notifier:   notifier,
		Leads:      leadSvc,
		Queue:      queue,
		Deliveries: notify.NewDeliveryStore(conn),
	}, log)
	t.Cleanup(func() { srv.cancel() })
	return srv
}

func (s *Server) testMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func leadBody() map[string]any {
	return map[string]any{
		"fullName":      "Amy Agent",
		"email":         "amy@example.com",
		"phone":         "+15555550111",
		"product":       "Kitchen Renovation",
		"message":       "Looking for an estimate",
		"streetAddress": "123 Main St",
		"city":          "Palo Alto",
		"state":         "CA",
		"zip":           "94301",
	}
}

func leadStubResponses() map[string]string {
	return map[string]string{
		"listContacts":     `{"data": {"listContacts": {"items": [], "nextToken": null}}}`,
		"createContacts":   `{"data": {"createContacts": {"id": "c-1", "email": "amy@example.com"}}}`,
		"createProperties": `{"data": {"createProperties": {"id": "p-1"}}}`,
		"createRequests":   `{"data": {"createRequests": {"id": "r-1", "status": "New"}}}`,
	}
}

func TestLeadSubmitAccepted(t *testing.T) {
	stub := &gqlStub{t: t, responses: leadStubResponses()}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	rec := postJSON(t, mux, "/api/leads/estimate", leadBody())
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r-1", resp["requestId"])
	assert.Equal(t, "received", resp["status"])

	queued, _, err := srv.queue.GetJobCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestLeadSubmitValidation(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	body := leadBody()
	body["email"] = "not-an-email"
	rec := postJSON(t, mux, "/api/leads/estimate", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, mux, "/api/leads/newsletter", leadBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadSubmitMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/leads/estimate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLeadSubmitRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Leads = am.Leads{RatePerMinute: 1, Burst: 2}
	stub := &gqlStub{t: t, responses: leadStubResponses()}
	srv := newTestServer(t, stub, cfg)
	mux := srv.testMux()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := postJSON(t, mux, "/api/leads/estimate", leadBody())
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, statuses[2], "third request should be throttled, got %v", statuses)
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AdminAPIKey = "secret-key"
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, cfg)
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsSubsystems(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["database"])
	assert.Equal(t, "ok", health["data_api"])
	assert.Contains(t, health, "cache")
	assert.Contains(t, health, "jobs")
}

func TestConfigRedactsSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.DataAPI.APIKey = "da2-verysecretkey123"
	cfg.Notify.Email.APIKey = "SG.anothersecret"
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, cfg)
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "da2-verysecretkey123")
	assert.NotContains(t, body, "SG.anothersecret")
	assert.Contains(t, body, "da2-")
}

func TestQuoteGetEnhanced(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"getQuotes":      `{"data": {"getQuotes": {"id": "q-1", "title": "Kitchen remodel", "status": "Draft", "agentContactId": "c-agent"}}}`,
		"listContacts":   `{"data": {"listContacts": {"items": [{"id": "c-agent", "fullName": "Amy Agent", "email": "amy@example.com"}], "nextToken": null}}}`,
		"listQuoteItems": `{"data": {"listQuoteItems": {"items": [], "nextToken": null}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/quotes/q-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "q-1", quote["id"])
	agent, ok := quote["agent"].(map[string]interface{})
	require.True(t, ok, "expected resolved agent, got %v", quote["agent"])
	assert.Equal(t, "Amy Agent", agent["fullName"])
}

func TestQuotePatchSentQueuesNotification(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"updateQuotes": `{"data": {"updateQuotes": {"id": "q-1", "quoteNumber": 42, "title": "Kitchen remodel", "status": "Sent", "totalPrice": 18500, "agentContactId": "c-agent"}}}`,
		"getContacts":  `{"data": {"getContacts": {"id": "c-agent", "fullName": "Amy Agent", "email": "amy@example.com", "phone": "+15555550111"}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	data, _ := json.Marshal(map[string]any{"status": "Sent"})
	req := httptest.NewRequest(http.MethodPatch, "/api/quotes/q-1", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// quote.sent fires on email and sms
	queued, _, err := srv.queue.GetJobCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	job, err := srv.queue.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "notify:quote.sent", job.Source)
}

func TestQuotePatchNonStatusFieldNoNotification(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"updateQuotes": `{"data": {"updateQuotes": {"id": "q-1", "title": "New title"}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	data, _ := json.Marshal(map[string]any{"title": "New title"})
	req := httptest.NewRequest(http.MethodPatch, "/api/quotes/q-1", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	queued, _, err := srv.queue.GetJobCounts()
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestQuotePatchInvalidatesCache(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"listQuotes":   `{"data": {"listQuotes": {"items": [{"id": "q-1", "title": "Kitchen remodel"}], "nextToken": null}}}`,
		"updateQuotes": `{"data": {"updateQuotes": {"id": "q-1", "title": "Renamed"}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	// Prime the cache
	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	listCallsBefore := len(stub.requestsFor("listQuotes"))

	// Cached second read
	req = httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, listCallsBefore, len(stub.requestsFor("listQuotes")))

	// Write clears the cache
	data, _ := json.Marshal(map[string]any{"title": "Renamed"})
	patchReq := httptest.NewRequest(http.MethodPatch, "/api/quotes/q-1", bytes.NewReader(data))
	mux.ServeHTTP(httptest.NewRecorder(), patchReq)

	req = httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	assert.Greater(t, len(stub.requestsFor("listQuotes")), listCallsBefore)
}

func TestProjectPatchStatusNotifiesHomeowner(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"updateProjects": `{"data": {"updateProjects": {"id": "pr-1", "title": "Main St reno", "status": "Boosting", "homeownerContactId": "c-owner"}}}`,
		"getContacts":    `{"data": {"getContacts": {"id": "c-owner", "fullName": "Harry Homeowner", "email": "harry@example.com"}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	data, _ := json.Marshal(map[string]any{"status": "Boosting"})
	req := httptest.NewRequest(http.MethodPatch, "/api/projects/pr-1", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Homeowner has email but no phone: only the email channel fires.
	queued, _, err := srv.queue.GetJobCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	job, err := srv.queue.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, notify.HandlerEmail, job.HandlerName)
	assert.Equal(t, "notify:project.status", job.Source)
}

func TestJobEndpoints(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	job, err := dispatch.NewJob("notify.email", "test:job", nil, 1)
	require.NoError(t, err)
	require.NoError(t, srv.queue.Enqueue(job))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, float64(1), list["count"])

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cancelled, err := srv.queue.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.JobStatusCancelled, cancelled.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/deliveries", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJobGetUnknownIs404(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{platformerrors.NewNotFound("quote %s", "q-1"), http.StatusNotFound},
		{platformerrors.NewValidation("bad input"), http.StatusBadRequest},
		{platformerrors.ErrUnauthorized, http.StatusUnauthorized},
		{platformerrors.WithStack(platformerrors.ErrThrottled), http.StatusTooManyRequests},
		{platformerrors.Wrap(platformerrors.ErrUpstream, "data api"), http.StatusBadGateway},
		{platformerrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusForError(tc.err))
	}
}

func TestContactsListFlat(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"listContacts": `{"data": {"listContacts": {"items": [
			{"id": "c-1", "fullName": "Amy Agent", "email": "amy@example.com"},
			{"id": "c-2", "fullName": "Bob Broker", "email": "bob@example.com"}
		], "nextToken": null}}}`,
	}}
	srv := newTestServer(t, stub, testConfig())
	mux := srv.testMux()

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp["items"], 2)
	assert.Equal(t, "Amy Agent", resp["items"][0]["fullName"])
}

func TestNotifyTestEndpointQueuesJobs(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	rec := postJSON(t, mux, "/api/notifications/test", map[string]any{
		"event":  "lead.ack",
		"data":   map[string]any{"Name": "Amy", "RequestID": "r-1"},
		"emails": []string{"amy@example.com"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		JobIDs  []string `json:"jobIds"`
		Sandbox bool     `json:"sandbox"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobIDs)
	assert.True(t, resp.Sandbox)

	queued, _, err := srv.queue.GetJobCounts()
	require.NoError(t, err)
	assert.Equal(t, len(resp.JobIDs), queued)
}

func TestNotifyTestEndpointUnknownEvent(t *testing.T) {
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, testConfig())
	mux := srv.testMux()

	rec := postJSON(t, mux, "/api/notifications/test", map[string]any{
		"event": "no.such.event",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOriginAllowedMatchesHostExactly(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"http://localhost", "https://admin.realtechee.com:8443"}
	srv := newTestServer(t, &gqlStub{t: t, responses: map[string]string{}}, cfg)

	allowed := []string{
		"http://localhost",
		"http://localhost:3000",
		"http://localhost:5173",
		"https://admin.realtechee.com:8443",
	}
	for _, origin := range allowed {
		assert.True(t, srv.originAllowed(origin), "expected %s to be allowed", origin)
	}

	denied := []string{
		"http://localhost.evil.com",        // host suffix attack
		"http://127.0.0.1.evil.com",        // same, dotted-quad flavor
		"https://localhost",                // scheme mismatch
		"http://evillocalhost",             // host prefix attack
		"https://admin.realtechee.com",     // port required by config entry
		"https://admin.realtechee.com:444", // wrong port
		"not a url",
		"",
	}
	for _, origin := range denied {
		assert.False(t, srv.originAllowed(origin), "expected %s to be rejected", origin)
	}
}
