package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shaun/pagesdeploy/internal/auth"
	"github.com/shaun/pagesdeploy/internal/deploy"
	"github.com/shaun/pagesdeploy/internal/history"
	"github.com/shaun/pagesdeploy/internal/publish"
)

const DefaultMaxBody = 8 << 20

// Deployer runs deploys. Implemented by *deploy.Service; inject a fake in tests.
type Deployer interface {
	DeployContent(ctx context.Context, path string, content []byte, message string) (*publish.Success, error)
	Touch(ctx context.Context, path string) (*publish.Success, error)
	Files(ctx context.Context, dir string) (*deploy.Status, error)
}

type Handler struct {
	deployer Deployer
	history  *history.Store
	maxBody  int64
	log      *zap.Logger
}

func NewHandler(d Deployer, h *history.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.L()
	}
	return &Handler{deployer: d, history: h, maxBody: DefaultMaxBody, log: log.Named("api")}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a failure kind to the HTTP status returned to the caller.
func statusFor(k publish.Kind) int {
	switch k {
	case publish.Conflict:
		return http.StatusConflict
	case publish.QuotaExceeded:
		return http.StatusInsufficientStorage
	case publish.NetworkError:
		return http.StatusGatewayTimeout
	case publish.ConfigError, publish.InvalidContent:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req DeployRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	content := []byte(req.Content)
	switch req.Encoding {
	case "":
	case "base64":
		var err error
		if content, err = publish.Decode(req.Content); err != nil {
			http.Error(w, "content is not valid base64", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "encoding must be empty or base64", http.StatusBadRequest)
		return
	}
	res, err := h.deployer.DeployContent(r.Context(), req.Path, content, req.Message)
	h.finish(w, r, req.Path, res, err)
}

func (h *Handler) Touch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TouchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	res, err := h.deployer.Touch(r.Context(), req.Path)
	h.finish(w, r, req.Path, res, err)
}

// finish records the outcome and writes the response.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, path string, res *publish.Success, err error) {
	rec := &history.Record{
		ID:   w.Header().Get(requestIDHeader),
		User: auth.UserFromRequest(r),
		Path: path,
	}
	if err != nil {
		kind := publish.KindOf(err)
		rec.Kind, rec.Message = string(kind), err.Error()
		h.history.Add(rec)
		h.log.Warn("deploy failed", zap.String("id", rec.ID), zap.String("user", rec.User), zap.String("kind", rec.Kind), zap.Error(err))
		respondJSON(w, statusFor(kind), ErrorResponse{ID: rec.ID, Kind: rec.Kind, Message: err.Error(), Detail: deploy.Describe(err)})
		return
	}
	rec.CommitID, rec.URL = res.CommitID, res.URL
	h.history.Add(rec)
	h.log.Info("deploy done", zap.String("id", rec.ID), zap.String("user", rec.User), zap.String("commit", res.CommitID))
	out := DeployResponse{
		ID:        rec.ID,
		CommitID:  res.CommitID,
		URL:       res.URL,
		Created:   res.Created,
		Unchanged: res.Unchanged,
	}
	if res.Probe.Err != nil {
		out.Warning = "remote revision could not be checked: " + res.Probe.Err.Error()
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) Deploys(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.history.List(r.URL.Query().Get("user")))
}

func (h *Handler) DeployByID(w http.ResponseWriter, r *http.Request) {
	rec := h.history.Get(chi.URLParam(r, "id"))
	if rec == nil {
		http.Error(w, "deploy not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// LastDeploy returns the newest successful deploy recorded for the path
// query parameter.
func (h *Handler) LastDeploy(w http.ResponseWriter, r *http.Request) {
	rec := h.history.Last(r.URL.Query().Get("path"))
	if rec == nil {
		http.Error(w, "no successful deploy", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	st, err := h.deployer.Files(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		kind := publish.KindOf(err)
		respondJSON(w, statusFor(kind), ErrorResponse{Kind: string(kind), Message: err.Error(), Detail: deploy.Describe(err)})
		return
	}
	res := FilesResponse{Target: st.Target.String(), Files: make([]FileEntry, len(st.Files)), Limit: st.Limit, AtLimit: st.AtLimit}
	for i, f := range st.Files {
		res.Files[i] = FileEntry{Path: f.Path, Size: f.Size, SHA: f.SHA}
	}
	respondJSON(w, http.StatusOK, res)
}
