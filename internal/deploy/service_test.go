package deploy

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaun/pagesdeploy/internal/github"
	"github.com/shaun/pagesdeploy/internal/publish"
)

var site = publish.Target{Owner: "alice", Repo: "site", Branch: "gh-pages"}

var fixedNow = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

// scriptedStore answers probes from files and fails the first len(putErrs)
// writes with the scripted errors.
type scriptedStore struct {
	files   map[string]string
	putErrs []error
	puts    []*publish.Put
}

func (s *scriptedStore) GetFile(_ context.Context, _ publish.Target, path string) (*publish.RemoteFile, error) {
	c, ok := s.files[path]
	if !ok {
		return nil, &publish.StatusError{StatusCode: http.StatusNotFound}
	}
	return &publish.RemoteFile{SHA: publish.BlobSHA([]byte(c)), Content: publish.Encode([]byte(c))}, nil
}

func (s *scriptedStore) PutFile(_ context.Context, _ publish.Target, put *publish.Put) (string, error) {
	s.puts = append(s.puts, put)
	if len(s.puts) <= len(s.putErrs) {
		return "", s.putErrs[len(s.puts)-1]
	}
	raw, _ := publish.Decode(put.Content)
	if s.files == nil {
		s.files = map[string]string{}
	}
	s.files[put.Path] = string(raw)
	return "c0ffee1234567", nil
}

type fakeLister struct {
	entries []github.Entry
	err     error
}

func (l *fakeLister) ListFiles(context.Context, publish.Target, string, bool) ([]github.Entry, error) {
	return l.entries, l.err
}

func newService(store publish.Store, lister Lister, opts Options) *Service {
	opts.Target = site
	if opts.Path == "" {
		opts.Path = "index.html"
	}
	opts.RetryInterval = time.Millisecond
	opts.Logger = zap.NewNop()
	opts.Now = fixedNow
	return NewService(publish.New(store, publish.Options{Logger: zap.NewNop()}), lister, opts)
}

func TestDeployFile(t *testing.T) {
	local := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(local, []byte("<html>v2</html>"), 0o644))
	store := &scriptedStore{files: map[string]string{"index.html": "<html>v1</html>"}}
	s := newService(store, nil, Options{})

	res, err := s.DeployFile(context.Background(), local, FileOptions{Cleanup: true})
	require.NoError(t, err)
	require.Equal(t, "https://alice.github.io/site/", res.URL)
	require.Equal(t, "c0ffee1", res.ShortID())
	require.Equal(t, "<html>v2</html>", store.files["index.html"])
	require.Equal(t, "Deploy index.html via pagesdeploy [2026-10-15T12:00:00Z]", store.puts[0].Message)

	_, err = os.Stat(local)
	require.True(t, os.IsNotExist(err), "artifact should be cleaned up")
}

func TestDeployFile_keepsArtifactOnFailure(t *testing.T) {
	local := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	store := &scriptedStore{putErrs: []error{&publish.StatusError{StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}}}
	s := newService(store, nil, Options{})

	_, err := s.DeployFile(context.Background(), local, FileOptions{Cleanup: true})
	require.Equal(t, publish.RemoteRejected, publish.KindOf(err))
	_, err = os.Stat(local)
	require.NoError(t, err)
}

func TestDeployFile_missingAndOversized(t *testing.T) {
	s := newService(&scriptedStore{}, nil, Options{MaxBytes: 4})

	_, err := s.DeployFile(context.Background(), filepath.Join(t.TempDir(), "nope.html"), FileOptions{})
	require.Equal(t, publish.InvalidContent, publish.KindOf(err))

	local := filepath.Join(t.TempDir(), "big.html")
	require.NoError(t, os.WriteFile(local, []byte("too big"), 0o644))
	_, err = s.DeployFile(context.Background(), local, FileOptions{})
	require.Equal(t, publish.InvalidContent, publish.KindOf(err))
}

func TestDeployContent_retriesConflict(t *testing.T) {
	store := &scriptedStore{
		files:   map[string]string{"index.html": "v1"},
		putErrs: []error{&publish.StatusError{StatusCode: http.StatusConflict, Message: "does not match"}},
	}
	s := newService(store, nil, Options{Retries: 2})

	res, err := s.DeployContent(context.Background(), "", []byte("v2"), "custom")
	require.NoError(t, err)
	require.NotEmpty(t, res.CommitID)
	require.Len(t, store.puts, 2)
	require.Equal(t, "custom", store.puts[1].Message)
}

func TestDeployContent_noRetryByDefault(t *testing.T) {
	store := &scriptedStore{putErrs: []error{errors.Join(publish.ErrTransport, errors.New("connection refused"))}}
	s := newService(store, nil, Options{})

	_, err := s.DeployContent(context.Background(), "index.html", []byte("x"), "")
	require.Equal(t, publish.NetworkError, publish.KindOf(err))
	require.Len(t, store.puts, 1)
}

func TestDeployContent_quotaIsNotRetried(t *testing.T) {
	store := &scriptedStore{putErrs: []error{&publish.StatusError{StatusCode: http.StatusForbidden, Message: "too many files"}}}
	s := newService(store, nil, Options{Retries: 5})

	_, err := s.DeployContent(context.Background(), "index.html", []byte("x"), "")
	require.Equal(t, publish.QuotaExceeded, publish.KindOf(err))
	require.Len(t, store.puts, 1)
}

func TestTouch(t *testing.T) {
	store := &scriptedStore{files: map[string]string{"index.html": "<html></html>\n"}}
	s := newService(store, nil, Options{})

	_, err := s.Touch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "<html></html>\n<!-- deployed: 2026-10-15T12:00:00Z -->\n", store.files["index.html"])
}

func TestFiles(t *testing.T) {
	lister := &fakeLister{entries: []github.Entry{
		{Name: "index.html", Path: "index.html", Type: "file", Size: 10, SHA: "abcdef0123"},
		{Name: "app.js", Path: "assets/app.js", Type: "file", Size: 3, SHA: "123456789a"},
	}}
	s := newService(&scriptedStore{}, lister, Options{FileLimit: 2})

	st, err := s.Files(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, st.Files, 2)
	require.True(t, st.AtLimit)

	var buf bytes.Buffer
	ReportStatus(&buf, st)
	require.Contains(t, buf.String(), "alice/site@gh-pages: 2 files")
	require.Contains(t, buf.String(), "abcdef0")
	require.Contains(t, buf.String(), "2 file limit")
}

func TestFiles_notFound(t *testing.T) {
	s := newService(&scriptedStore{}, &fakeLister{err: &publish.StatusError{StatusCode: http.StatusNotFound}}, Options{})
	_, err := s.Files(context.Background(), "docs")
	require.Equal(t, publish.RemoteRejected, publish.KindOf(err))
	require.Contains(t, err.Error(), "docs not found")
}

func TestDescribe(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range []publish.Kind{
		publish.ConfigError, publish.NetworkError, publish.ProtocolError, publish.Conflict,
		publish.QuotaExceeded, publish.RemoteRejected, publish.InvalidContent,
	} {
		msg := Describe(publish.Fail(k, "detail"))
		require.Contains(t, msg, "detail")
		require.False(t, seen[msg], "message for %s is not distinct", k)
		seen[msg] = true
	}
	require.True(t, strings.Contains(Describe(publish.Fail(publish.QuotaExceeded, "x")), "recreate"))
	require.Equal(t, "Deployment failed: boom", Describe(errors.New("boom")))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, &publish.Success{CommitID: "9f8e7d6c5b4a", URL: "https://alice.github.io/site/"})
	require.Equal(t, "Deployment succeeded.\n> Commit: 9f8e7d6\n> Live URL: https://alice.github.io/site/\n", buf.String())

	buf.Reset()
	Report(&buf, &publish.Success{Unchanged: true, URL: "u", Probe: publish.RemoteState{Err: errors.New("rate limited")}})
	require.Contains(t, buf.String(), "already up to date")
	require.Contains(t, buf.String(), "rate limited")
	require.NotContains(t, buf.String(), "Commit")
}
