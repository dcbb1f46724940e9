// Package publish writes a single file to a remote content store using the
// store's revision token for optimistic concurrency control.
package publish

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Options struct {
	// StrictProbe aborts when the probe fails for any reason other than
	// "not found". Off by default: the probe is best-effort.
	StrictProbe bool
	// SkipUnchanged skips the write when the remote revision already equals
	// the blob id of the new content.
	SkipUnchanged bool
	// Timeout bounds each store call. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *zap.Logger
}

type Publisher struct {
	store Store
	opts  Options
	log   *zap.Logger
}

func New(store Store, opts Options) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	return &Publisher{store: store, opts: opts, log: log.Named("publish")}
}

// Publish replaces the file at req.Path with req.Content. It issues one
// probe and at most one write; retrying is left to the caller.
func (p *Publisher) Publish(ctx context.Context, req *Request) (*Success, error) {
	if err := validate(req.Target, req.Path); err != nil {
		return nil, err
	}
	state, _, err := p.probe(ctx, req.Target, req.Path)
	if err != nil {
		return nil, err
	}
	if p.opts.SkipUnchanged && state.Exists && state.Revision == BlobSHA(req.Content) {
		p.log.Info("remote content unchanged, skipping write",
			zap.Stringer("target", req.Target), zap.String("path", req.Path), zap.String("sha", state.Revision))
		return &Success{URL: LiveURL(req.Target), Unchanged: true, Probe: state}, nil
	}
	return p.write(ctx, req.Target, req.Path, req.Content, req.CommitMessage, state)
}

// Update rewrites the file at req.Path with req.Transform applied to its
// current content. The current content is required, so any probe failure
// other than "not found" is returned.
func (p *Publisher) Update(ctx context.Context, req *UpdateRequest) (*Success, error) {
	if err := validate(req.Target, req.Path); err != nil {
		return nil, err
	}
	if req.Transform == nil {
		return nil, Fail(InvalidContent, "no transform given")
	}
	state, file, err := p.probe(ctx, req.Target, req.Path)
	if err != nil {
		return nil, err
	}
	if state.Err != nil {
		return nil, failure(state.Err)
	}
	var old []byte
	if file != nil {
		if file.Incomplete {
			return nil, Fail(ProtocolError, "%s is too large to fetch through the contents API", req.Path)
		}
		old, err = Decode(file.Content)
		if err != nil {
			return nil, &Failure{Kind: ProtocolError, Message: "remote content is not valid base64", Err: err}
		}
	}
	content, err := req.Transform(old)
	if err != nil {
		return nil, &Failure{Kind: InvalidContent, Message: err.Error(), Err: err}
	}
	return p.write(ctx, req.Target, req.Path, content, req.CommitMessage, state)
}

// probe reads the remote file. Only a StrictProbe publisher returns an
// error; otherwise an inconclusive probe is recorded in RemoteState.Err.
func (p *Publisher) probe(ctx context.Context, target Target, path string) (RemoteState, *RemoteFile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	file, err := p.store.GetFile(ctx, target, path)
	switch {
	case err == nil && file != nil && file.SHA != "":
		p.log.Debug("remote revision", zap.String("path", path), zap.String("sha", file.SHA))
		return RemoteState{Exists: true, Revision: file.SHA}, file, nil
	case err == nil:
		err = Fail(ProtocolError, "probe response carries no revision")
	case IsNotFound(err):
		p.log.Debug("remote file not found, will create", zap.String("path", path))
		return RemoteState{}, nil, nil
	}
	if p.opts.StrictProbe {
		return RemoteState{}, nil, failure(err)
	}
	p.log.Warn("could not check remote revision, proceeding without it",
		zap.Stringer("target", target), zap.String("path", path), zap.Error(err))
	return RemoteState{Err: err}, nil, nil
}

func (p *Publisher) write(ctx context.Context, target Target, path string, content []byte, msg string, state RemoteState) (*Success, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Kind: NetworkError, Message: "cancelled before write", Err: err}
	}
	// Once dispatched the write runs to completion or timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.Timeout)
	defer cancel()

	put := &Put{
		Path:    path,
		Message: msg,
		Content: Encode(content),
		SHA:     state.Revision,
	}
	commit, err := p.store.PutFile(ctx, target, put)
	if err != nil {
		f := failure(err)
		p.log.Error("write rejected", zap.Stringer("target", target), zap.String("path", path),
			zap.String("kind", string(f.Kind)), zap.String("message", f.Message))
		return nil, f
	}
	if commit == "" {
		return nil, Fail(ProtocolError, "write response carries no commit id")
	}
	p.log.Info("published", zap.Stringer("target", target), zap.String("path", path), zap.String("commit", commit))
	return &Success{
		CommitID: commit,
		URL:      LiveURL(target),
		Created:  put.SHA == "",
		Probe:    state,
	}, nil
}

func validate(t Target, path string) error {
	var missing []string
	if t.Owner == "" {
		missing = append(missing, "owner")
	}
	if t.Repo == "" {
		missing = append(missing, "repo")
	}
	if t.Branch == "" {
		missing = append(missing, "branch")
	}
	if path == "" {
		missing = append(missing, "path")
	}
	if len(missing) > 0 {
		return Fail(ConfigError, "missing %v", missing)
	}
	return nil
}
