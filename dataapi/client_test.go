package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/internal/httpclient"
	"github.com/realtechee/platform/models"
)

// gqlStub is a minimal data API double: it inspects the posted document and
// answers from canned responses keyed by operation substring.
type gqlStub struct {
	t         *testing.T
	responses map[string]string // operation substring -> raw JSON body
	requests  []gqlRequest
}

func (s *gqlStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.t, "test-key", r.Header.Get("x-api-key"))

		var req gqlRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		s.requests = append(s.requests, req)

		for op, body := range s.responses {
			if strings.Contains(req.Query, op) {
				fmt.Fprint(w, body)
				return
			}
		}
		fmt.Fprint(w, `{"data": {}}`)
	}
}

func newTestClient(t *testing.T, stub *gqlStub) *Client {
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewWithHTTP(srv.URL, "test-key", httpclient.WrapClient(srv.Client()), zap.NewNop().Sugar())
}

func TestCollectionGet(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"getContacts": `{"data": {"getContacts": {"id": "c1", "email": "a@b.com", "fullName": "Amy Agent"}}}`,
	}}
	col := NewCollection[models.Contact](newTestClient(t, stub), "Contacts")

	contact, err := col.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", contact.ID)
	assert.Equal(t, "Amy Agent", contact.FullName)
}

func TestCollectionGetNotFound(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"getContacts": `{"data": {"getContacts": null}}`,
	}}
	col := NewCollection[models.Contact](newTestClient(t, stub), "Contacts")

	_, err := col.Get(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCollectionListPaginates(t *testing.T) {
	page1 := `{"data": {"listQuotes": {"items": [{"id": "q1"}, {"id": "q2"}], "nextToken": "tok"}}}`
	page2 := `{"data": {"listQuotes": {"items": [{"id": "q3"}], "nextToken": null}}}`

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, page1)
		} else {
			fmt.Fprint(w, page2)
		}
	}))
	defer srv.Close()

	client := NewWithHTTP(srv.URL, "test-key", httpclient.WrapClient(srv.Client()), zap.NewNop().Sugar())
	col := NewCollection[models.Quote](client, "Quotes")

	quotes, err := col.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "q3", quotes[2].ID)
}

func TestExecuteGraphQLErrorWinsOverData(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"getQuotes": `{"data": {"getQuotes": {"id": "q1"}}, "errors": [{"message": "denied", "errorType": "Unauthorized"}]}`,
	}}
	col := NewCollection[models.Quote](newTestClient(t, stub), "Quotes")

	_, err := col.Get(context.Background(), "q1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestExecuteClassifiesHTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, func(err error) bool { return errors.Is(err, errors.ErrUnauthorized) }},
		{http.StatusTooManyRequests, errors.IsThrottled},
		{http.StatusBadGateway, errors.IsUpstream},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewWithHTTP(srv.URL, "k", httpclient.WrapClient(srv.Client()), zap.NewNop().Sugar())

		err := client.Execute(context.Background(), `query Ping { __typename }`, nil, nil)
		assert.True(t, tc.check(err), "status %d", tc.status)
		srv.Close()
	}
}

func TestCollectionUpdateBuildsInput(t *testing.T) {
	stub := &gqlStub{t: t, responses: map[string]string{
		"updateQuotes": `{"data": {"updateQuotes": {"id": "q1", "status": "Sent"}}}`,
	}}
	col := NewCollection[models.Quote](newTestClient(t, stub), "Quotes")

	quote, err := col.Update(context.Background(), "q1", map[string]any{"status": "Sent"})
	require.NoError(t, err)
	assert.Equal(t, "Sent", quote.Status)

	require.Len(t, stub.requests, 1)
	input := stub.requests[0].Variables["input"].(map[string]any)
	assert.Equal(t, "q1", input["id"])
	assert.Equal(t, "Sent", input["status"])
}

func TestFieldSelectionFromTags(t *testing.T) {
	type probe struct {
		ID             string `json:"id"`
		AgentContactID string `json:"agentContactId,omitempty"`
		Ignored        string `json:"-"`
	}
	sel := fieldSelection(reflect.TypeOf(probe{}))
	assert.Contains(t, sel, "id")
	assert.Contains(t, sel, "agentContactId")
	assert.NotContains(t, sel, "Ignored")
}
