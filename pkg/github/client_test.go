package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		raw   string
		owner string
		repo  string
		fails bool
	}{
		{raw: "https://github.com/acme/widget", owner: "acme", repo: "widget"},
		{raw: "https://github.com/acme/widget.git", owner: "acme", repo: "widget"},
		{raw: "https://github.com/acme/widget/tree/main/docs", owner: "acme", repo: "widget"},
		{raw: "git@github.com:acme/widget.git", owner: "acme", repo: "widget"},
		{raw: "https://github.com/acme", fails: true},
		{raw: "", fails: true},
	}

	for _, tc := range cases {
		owner, repo, err := ParseRepoURL(tc.raw)
		if tc.fails {
			require.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.owner, owner)
		require.Equal(t, tc.repo, repo)
	}
}

func TestBranchCandidatesDeduplicates(t *testing.T) {
	require.Equal(t, []string{"main", "master"}, BranchCandidates("main"))
	require.Equal(t, []string{"develop", "main", "master"}, BranchCandidates("develop"))
	require.Equal(t, []string{"main", "master"}, BranchCandidates(""))
}

func TestDefaultBranchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Config{APIBase: server.URL}, zerolog.Nop())

	_, err := client.DefaultBranch(context.Background(), "acme", "ghost")
	require.ErrorIs(t, err, ErrRepoNotFound)
}

func TestDownloadArchiveFallsBackThroughCandidates(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path == "/acme/widget/zip/refs/heads/master" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("zipbytes"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Config{ArchiveBase: server.URL}, zerolog.Nop())

	archive, err := client.DownloadArchive(context.Background(), "acme", "widget", []string{"develop", "main", "master"})
	require.NoError(t, err)
	defer archive.Body.Close()

	require.Equal(t, "master", archive.Branch)
	require.Equal(t, []string{
		"/acme/widget/zip/refs/heads/develop",
		"/acme/widget/zip/refs/heads/main",
		"/acme/widget/zip/refs/heads/master",
	}, requested)
}

func TestDownloadArchiveAllCandidatesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Config{ArchiveBase: server.URL}, zerolog.Nop())

	_, err := client.DownloadArchive(context.Background(), "acme", "widget", []string{"main", "master"})
	require.ErrorIs(t, err, ErrNoDownloadableBranch)
}

func TestFetchReadmeDecodesBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("# Widget\n"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/readme", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"README.md","content":"` + encoded + `","encoding":"base64"}`))
	}))
	defer server.Close()

	client := New(Config{APIBase: server.URL}, zerolog.Nop())

	content, name, err := client.FetchReadme(context.Background(), "acme", "widget")
	require.NoError(t, err)
	require.Equal(t, "README.md", name)
	require.Equal(t, "# Widget\n", content)
}
