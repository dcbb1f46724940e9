// Package deploy runs the publish workflow on behalf of the CLI and the
// HTTP server: it reads the artifact, owns the retry policy and reports.
package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/shaun/pagesdeploy/internal/github"
	"github.com/shaun/pagesdeploy/internal/publish"
)

// Publisher is implemented by *publish.Publisher.
type Publisher interface {
	Publish(ctx context.Context, req *publish.Request) (*publish.Success, error)
	Update(ctx context.Context, req *publish.UpdateRequest) (*publish.Success, error)
}

// Lister is implemented by *github.Client.
type Lister interface {
	ListFiles(ctx context.Context, target publish.Target, dir string, recursive bool) ([]github.Entry, error)
}

type Options struct {
	Target publish.Target
	// Path is the repository path used when a call does not name one.
	Path string
	// Retries is how many extra attempts a retryable failure gets.
	Retries int
	// RetryInterval is the first backoff delay.
	RetryInterval time.Duration
	MaxBytes      int64
	FileLimit     int
	Logger        *zap.Logger
	Now           func() time.Time
}

type Service struct {
	pub    Publisher
	lister Lister
	opts   Options
	log    *zap.Logger
}

func NewService(pub Publisher, lister Lister, opts Options) *Service {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	return &Service{pub: pub, lister: lister, opts: opts, log: log.Named("deploy")}
}

func (s *Service) Target() publish.Target { return s.opts.Target }

type FileOptions struct {
	// Path in the repository; defaults to the configured path.
	Path    string
	Message string
	// Cleanup removes the local artifact after a successful deploy.
	Cleanup bool
}

// ReadArtifact reads a local file and enforces the size limit.
func (s *Service) ReadArtifact(local string) ([]byte, error) {
	st, err := os.Stat(local)
	if err != nil {
		return nil, &publish.Failure{Kind: publish.InvalidContent, Message: fmt.Sprintf("cannot read %s: %v", local, err), Err: err}
	}
	if st.IsDir() {
		return nil, publish.Fail(publish.InvalidContent, "%s is a directory", local)
	}
	if err := s.checkSize(st.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, &publish.Failure{Kind: publish.InvalidContent, Message: fmt.Sprintf("cannot read %s: %v", local, err), Err: err}
	}
	return data, nil
}

// DeployFile publishes the local file to opts.Path.
func (s *Service) DeployFile(ctx context.Context, local string, opts FileOptions) (*publish.Success, error) {
	data, err := s.ReadArtifact(local)
	if err != nil {
		return nil, err
	}
	res, err := s.DeployContent(ctx, opts.Path, data, opts.Message)
	if err != nil {
		return nil, err
	}
	if opts.Cleanup {
		if err := os.Remove(local); err != nil {
			s.log.Warn("could not remove staged artifact", zap.String("file", local), zap.Error(err))
		}
	}
	return res, nil
}

// DeployContent publishes content to path, retrying retryable failures.
// Each attempt re-probes, so a retry after a conflict uses the latest
// revision.
func (s *Service) DeployContent(ctx context.Context, path string, content []byte, message string) (*publish.Success, error) {
	if err := s.checkSize(int64(len(content))); err != nil {
		return nil, err
	}
	if path == "" {
		path = s.opts.Path
	}
	if message == "" {
		message = s.CommitMessage(path)
	}
	req := &publish.Request{
		Target:        s.opts.Target,
		Path:          path,
		Content:       content,
		CommitMessage: message,
	}
	return s.retry(ctx, func() (*publish.Success, error) {
		return s.pub.Publish(ctx, req)
	})
}

// Touch appends a deploy marker to the remote file so the branch gets a
// modify commit without replacing the content.
func (s *Service) Touch(ctx context.Context, path string) (*publish.Success, error) {
	if path == "" {
		path = s.opts.Path
	}
	req := &publish.UpdateRequest{
		Target:        s.opts.Target,
		Path:          path,
		CommitMessage: s.CommitMessage(path),
	}
	return s.retry(ctx, func() (*publish.Success, error) {
		req.Transform = publish.AppendMarker(s.opts.Now())
		return s.pub.Update(ctx, req)
	})
}

// CommitMessage is the default message for a deploy of path.
func (s *Service) CommitMessage(path string) string {
	return fmt.Sprintf("Deploy %s via pagesdeploy [%s]", path, s.opts.Now().UTC().Format(time.RFC3339))
}

func (s *Service) retry(ctx context.Context, attempt func() (*publish.Success, error)) (*publish.Success, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.Retries)), ctx)

	var (
		res *publish.Success
		n   int
	)
	err := backoff.Retry(func() error {
		n++
		var err error
		res, err = attempt()
		if err == nil {
			return nil
		}
		kind := publish.KindOf(err)
		if !kind.Retryable() {
			return backoff.Permanent(err)
		}
		s.log.Warn("deploy attempt failed", zap.Int("attempt", n), zap.String("kind", string(kind)), zap.Error(err))
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) checkSize(n int64) error {
	if s.opts.MaxBytes > 0 && n > s.opts.MaxBytes {
		return publish.Fail(publish.InvalidContent, "artifact is %d bytes, limit is %d", n, s.opts.MaxBytes)
	}
	return nil
}

type Status struct {
	Target  publish.Target
	Files   []github.Entry
	Limit   int
	AtLimit bool
}

// Files lists every file on the target branch under dir and compares the
// count against the repository file limit.
func (s *Service) Files(ctx context.Context, dir string) (*Status, error) {
	if s.lister == nil {
		return nil, errors.New("no lister configured")
	}
	entries, err := s.lister.ListFiles(ctx, s.opts.Target, dir, true)
	if err != nil {
		if publish.IsNotFound(err) {
			return nil, publish.Fail(publish.RemoteRejected, "%s not found on %s", displayDir(dir), s.opts.Target)
		}
		return nil, &publish.Failure{Kind: publish.Classify(err), Message: err.Error(), Err: err}
	}
	st := &Status{Target: s.opts.Target, Files: entries, Limit: s.opts.FileLimit}
	if st.Limit > 0 && len(entries) >= st.Limit {
		st.AtLimit = true
		s.log.Warn("repository is at the file limit", zap.Int("files", len(entries)), zap.Int("limit", st.Limit))
	}
	return st, nil
}

func displayDir(dir string) string {
	if dir == "" || dir == "/" {
		return "repository root"
	}
	return dir
}
