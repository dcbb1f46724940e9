package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/shaun/pagesdeploy/internal/publish"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.github.com/"
	userAgent      = "pagesdeploy"
)

type Options struct {
	// BaseURL of the REST API; set for GitHub Enterprise or a fake server.
	BaseURL string
	// HTTPClient is the base client the token transport wraps (e.g. in tests).
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// Client talks to the repository contents API. It implements publish.Store.
type Client struct {
	gh *github.Client
}

var _ publish.Store = (*Client)(nil)

func NewClient(token string, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = publish.DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		oc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		// oauth2 keeps only the base transport.
		oc.Timeout = hc.Timeout
		hc = oc
	}
	gh := github.NewClient(hc)
	gh.UserAgent = userAgent
	if opts.BaseURL != "" && opts.BaseURL != DefaultBaseURL {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

func (c *Client) GetFile(ctx context.Context, target publish.Target, path string) (*publish.RemoteFile, error) {
	opts := &github.RepositoryContentGetOptions{Ref: target.Branch}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, target.Owner, target.Repo, path, opts)
	if err != nil {
		return nil, translate(err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", publish.ErrMalformedResponse, path)
	}
	rf := &publish.RemoteFile{SHA: file.GetSHA()}
	if file.Content != nil {
		rf.Content = *file.Content
	}
	// Files over 1MB come back without inline content.
	rf.Incomplete = file.GetEncoding() == "none" && file.GetSize() > 0
	return rf, nil
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// PutFile sends put.Content as is. It is already base64, so the request is
// built directly instead of through CreateFile/UpdateFile, which encode again.
func (c *Client) PutFile(ctx context.Context, target publish.Target, put *publish.Put) (string, error) {
	u := fmt.Sprintf("repos/%s/%s/contents/%s", target.Owner, target.Repo, escapePath(put.Path))
	req, err := c.gh.NewRequest(http.MethodPut, u, &putBody{
		Message: put.Message,
		Content: put.Content,
		SHA:     put.SHA,
		Branch:  target.Branch,
	})
	if err != nil {
		return "", err
	}
	res := new(github.RepositoryContentResponse)
	if _, err := c.gh.Do(ctx, req, res); err != nil {
		return "", translate(err)
	}
	return res.Commit.GetSHA(), nil
}

type Entry struct {
	Name string
	Path string
	Type string
	Size int
	SHA  string
}

// ListFiles lists the entries under dir on the target branch. With
// recursive set, subdirectories are walked and only files are returned.
func (c *Client) ListFiles(ctx context.Context, target publish.Target, dir string, recursive bool) ([]Entry, error) {
	opts := &github.RepositoryContentGetOptions{Ref: target.Branch}

	var out []Entry
	var walk func(path string) error
	walk = func(path string) error {
		file, dirContents, _, err := c.gh.Repositories.GetContents(ctx, target.Owner, target.Repo, path, opts)
		if err != nil {
			return translate(err)
		}
		if file != nil {
			out = append(out, entryOf(file))
			return nil
		}
		for _, e := range dirContents {
			if e.Type == nil {
				continue
			}
			if recursive && *e.Type == "dir" {
				if err := walk(e.GetPath()); err != nil {
					return err
				}
				continue
			}
			out = append(out, entryOf(e))
		}
		return nil
	}
	if err := walk(strings.Trim(dir, "/")); err != nil {
		return nil, err
	}
	return out, nil
}

func entryOf(rc *github.RepositoryContent) Entry {
	return Entry{
		Name: rc.GetName(),
		Path: rc.GetPath(),
		Type: rc.GetType(),
		Size: rc.GetSize(),
		SHA:  rc.GetSHA(),
	}
}

func escapePath(p string) string {
	return (&url.URL{Path: strings.TrimSuffix(p, "/")}).String()
}

// translate maps go-github errors onto the publish package's error values.
func translate(err error) error {
	var (
		ghErr   *github.ErrorResponse
		rlErr   *github.RateLimitError
		abErr   *github.AbuseRateLimitError
		synErr  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &ghErr):
		return &publish.StatusError{StatusCode: statusOf(ghErr.Response), Message: ghErr.Message}
	case errors.As(err, &rlErr):
		return &publish.StatusError{StatusCode: statusOf(rlErr.Response), Message: rlErr.Message}
	case errors.As(err, &abErr):
		return &publish.StatusError{StatusCode: statusOf(abErr.Response), Message: abErr.Message}
	case errors.As(err, &synErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", publish.ErrMalformedResponse, err)
	default:
		return fmt.Errorf("%w: %w", publish.ErrTransport, err)
	}
}

func statusOf(res *http.Response) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}
