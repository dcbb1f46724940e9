package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 256

// Record is the outcome of one deploy request.
type Record struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Path     string    `json:"path"`
	CommitID string    `json:"commitId,omitempty"`
	URL      string    `json:"url,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

func (r *Record) OK() bool { return r.Kind == "" }

// Store keeps the most recent deploy records; the oldest are evicted.
type Store struct {
	mu      sync.Mutex
	records *lru.Cache[string, *Record]
	now     func() time.Time
}

func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	// lru.New only fails for a non-positive size.
	records, _ := lru.New[string, *Record](size)
	return &Store{records: records, now: time.Now}
}

// Add stores r, filling in its ID and timestamp when unset.
func (s *Store) Add(r *Record) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = s.now()
	}
	s.records.Add(r.ID, r)
	return r
}

func (s *Store) Get(id string) *Record {
	r, _ := s.records.Peek(id)
	return r
}

// List returns records newest first. An empty user matches everyone.
func (s *Store) List(user string) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.records.Values()
	out := make([]*Record, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if user == "" || all[i].User == user {
			out = append(out, all[i])
		}
	}
	return out
}

// Last returns the newest successful record for path, or nil.
func (s *Store) Last(path string) *Record {
	for _, r := range s.List("") {
		if r.Path == path && r.OK() {
			return r
		}
	}
	return nil
}
