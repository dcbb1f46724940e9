package publish

import (
	"context"
	"fmt"
)

// Target identifies the remote content store. It must not change while a
// publish is in flight.
type Target struct {
	Owner  string
	Repo   string
	Branch string
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s@%s", t.Owner, t.Repo, t.Branch)
}

// LiveURL is the GitHub Pages address served for the target.
func LiveURL(t Target) string {
	return fmt.Sprintf("https://%s.github.io/%s/", t.Owner, t.Repo)
}

type Request struct {
	Target        Target
	Path          string
	Content       []byte
	CommitMessage string
}

// Transform maps the current remote content to the content to write.
// old is nil when the remote file does not exist yet.
type Transform func(old []byte) ([]byte, error)

type UpdateRequest struct {
	Target        Target
	Path          string
	Transform     Transform
	CommitMessage string
}

// RemoteState is the outcome of probing the store before a write.
type RemoteState struct {
	Exists   bool
	Revision string
	// Err is set when the probe was inconclusive and the write proceeds
	// without a revision.
	Err error
}

type Success struct {
	CommitID string
	URL      string
	// Created is true when no revision was sent with the write.
	Created bool
	// Unchanged is true when the write was skipped because the remote
	// revision already matches the content.
	Unchanged bool
	Probe     RemoteState
}

// ShortID returns the abbreviated commit id.
func (s *Success) ShortID() string {
	if len(s.CommitID) > 7 {
		return s.CommitID[:7]
	}
	return s.CommitID
}

// RemoteFile is a file as reported by the store. Content is still in
// transport encoding.
type RemoteFile struct {
	SHA     string
	Content string
	// Incomplete is set when the store returned metadata only.
	Incomplete bool
}

// Put is a single create-or-update call. An empty SHA means create.
type Put struct {
	Path    string
	Message string
	Content string
	SHA     string
}

// Store is the remote content store. Implemented by *github.Client.
type Store interface {
	GetFile(ctx context.Context, target Target, path string) (*RemoteFile, error)
	PutFile(ctx context.Context, target Target, put *Put) (commitID string, err error)
}
