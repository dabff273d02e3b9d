package aisearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL:   baseURL,
		AccountID: "acct",
		Instance:  "rag",
		Token:     "token",
	}, zerolog.Nop())
	require.NoError(t, err)

	return client
}

func TestSearchSendsFolderFilterFirst(t *testing.T) {
	var payload searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte(`{"success":true,"result":{"response":"summary text","data":[{"path":"repos/s1/files/main.go"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "describe the project", "repos/s1/files/")
	require.NoError(t, err)
	require.Equal(t, "summary text", result.Response)
	require.Len(t, result.Documents, 1)

	require.NotNil(t, payload.Filters)
	require.Equal(t, "folder", payload.Filters.Key)
	require.Equal(t, "repos/s1/files/", payload.Filters.Value)
}

func TestSearchRetriesAlternateFilterThenUnfiltered(t *testing.T) {
	var filterKeys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		if req.Filters != nil {
			filterKeys = append(filterKeys, req.Filters.Key)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":1001,"message":"invalid filter"}]}`))
			return
		}

		filterKeys = append(filterKeys, "")
		_, _ = w.Write([]byte(`{"success":true,"result":{"response":"unfiltered answer","data":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "q", "repos/s1/files/")
	require.NoError(t, err)
	require.Equal(t, "unfiltered answer", result.Response)
	require.Equal(t, []string{"folder", "path", ""}, filterKeys)
}

func TestSearchDetectsRoutingErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":7003,"message":"could not route to /autorag/rags/rag"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Search(context.Background(), "q", "repos/s1/files/")
	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestTriggerSyncReturnsJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/accounts/acct/autorag/rags/rag/sync", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"result":{"job_id":"job-9"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	jobID, err := client.TriggerSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, "job-9", jobID)
}

func TestTriggerSyncRejectsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.TriggerSync(context.Background())
	require.Error(t, err)
}

func TestJobStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/acct/autorag/rags/rag/jobs/job-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"result":{"id":"job-1","status":"Completed"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	status, err := client.JobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, JobStatusCompleted, status)
}

func TestNormalizeDocumentPath(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
		want string
	}{
		{name: "path field", doc: Document{Path: "repos/s1/files/a.go"}, want: "repos/s1/files/a.go"},
		{name: "attributes path", doc: Document{Attributes: map[string]interface{}{"path": "repos/s1/files/b.go"}}, want: "repos/s1/files/b.go"},
		{name: "attributes folder plus filename", doc: Document{Filename: "c.go", Attributes: map[string]interface{}{"folder": "repos/s1/files"}}, want: "repos/s1/files/c.go"},
		{name: "filename only", doc: Document{Filename: "d.go"}, want: "d.go"},
		{name: "nothing", doc: Document{}, want: ""},
		{name: "path wins over attributes", doc: Document{Path: "x", Attributes: map[string]interface{}{"path": "y"}}, want: "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeDocumentPath(tc.doc))
		})
	}
}
