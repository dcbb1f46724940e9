package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var puts []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		case http.MethodPut:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			puts = append(puts, body)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"content":{"sha":"1"},"commit":{"sha":"5e1ec7ed0000"}}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, &puts
}

func parse(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_OWNER", "")
	t.Setenv("GH_REPO", "")
	// kingpin keeps values of flags without defaults across Parse calls.
	*flagAPIURL, *flagRepoURL, *flagBranch, *flagPath = "", "", "", ""
	*deployLocal, *deployMessage = false, ""
	flagRetries = optionalInt{}
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "none.json"),
		"--env-file", filepath.Join(dir, "none.env"),
	}
	cmd, err := app.Parse(append(base, args...))
	require.NoError(t, err)
	return cmd
}

func TestRun_deploy(t *testing.T) {
	server, puts := fakeAPI(t)
	local := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(local, []byte("<html>v1</html>"), 0o644))

	cmd := parse(t, "--api-url", server.URL, "--token=tk", "--owner=alice", "--repo=site", "deploy", local, "-m", "first")
	var out bytes.Buffer
	require.Equal(t, 0, run(context.Background(), cmd, &out))
	require.Contains(t, out.String(), "> Commit: 5e1ec7e")
	require.Contains(t, out.String(), "> Live URL: https://alice.github.io/site/")
	require.Len(t, *puts, 1)
	require.Equal(t, "first", (*puts)[0]["message"])
	require.Equal(t, "gh-pages", (*puts)[0]["branch"])
}

func TestOptionalInt(t *testing.T) {
	var o optionalInt
	require.Equal(t, "", o.String())
	require.NoError(t, o.Set("0"))
	require.NotNil(t, o.v)
	require.Equal(t, 0, *o.v)
	require.Error(t, o.Set("many"))
}

func TestRun_retriesFlagZero(t *testing.T) {
	parse(t, "--retries=0", "files")
	require.NotNil(t, flagRetries.v)
	require.Equal(t, 0, *flagRetries.v)
}

func TestRun_missingConfig(t *testing.T) {
	cmd := parse(t, "--token=", "--owner=", "--repo=", "deploy", "index.html")
	require.Equal(t, 2, run(context.Background(), cmd, &bytes.Buffer{}))
}

func TestRun_local(t *testing.T) {
	local := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(local, []byte("hello\n"), 0o644))

	cmd := parse(t, "--token=", "--owner=", "--repo=", "deploy", "--local", local)
	var out bytes.Buffer
	require.Equal(t, 0, run(context.Background(), cmd, &out))
	require.Contains(t, out.String(), "6 bytes (blob ce01362)")
}

func TestRun_init(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "saved.json")
	cmd := parse(t, "--token=tk", "--owner=alice", "--repo=site", "init")
	*cfgFile = cfg
	require.Equal(t, 0, run(context.Background(), cmd, &bytes.Buffer{}))

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"tk","owner":"alice","repo":"site"}`, string(data))
}
