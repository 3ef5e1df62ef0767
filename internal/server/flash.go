package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	flashCookie = "wikicache_flash"
	flashTTL    = 5 * time.Minute
	maxFlashes  = 1024
)

type flash struct {
	message string
	setAt   time.Time
}

// flashStore holds one-shot messages shown on the next page load, keyed by
// a per-browser cookie. Messages expire after flashTTL and at most
// maxFlashes are held.
type flashStore struct {
	mu       sync.Mutex
	messages map[string]flash
	now      func() time.Time
}

func newFlashStore() *flashStore {
	return &flashStore{messages: make(map[string]flash), now: time.Now}
}

// set records a message for the client, issuing a cookie if needed.
func (f *flashStore) set(w http.ResponseWriter, r *http.Request, message string) {
	id := ""
	if c, err := r.Cookie(flashCookie); err == nil {
		id = c.Value
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if _, ok := f.messages[id]; !ok && len(f.messages) >= maxFlashes {
		f.evict(now)
	}
	f.messages[id] = flash{message: message, setAt: now}
}

// evict drops expired messages, and the oldest one if the store is still
// full. Callers hold mu.
func (f *flashStore) evict(now time.Time) {
	oldestID, oldest := "", time.Time{}
	for id, m := range f.messages {
		if now.Sub(m.setAt) > flashTTL {
			delete(f.messages, id)
			continue
		}
		if oldestID == "" || m.setAt.Before(oldest) {
			oldestID, oldest = id, m.setAt
		}
	}
	if len(f.messages) >= maxFlashes {
		delete(f.messages, oldestID)
	}
}

// pop retrieves and immediately deletes a message
func (f *flashStore) pop(r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[c.Value]
	if !ok {
		return ""
	}
	delete(f.messages, c.Value)
	if f.now().Sub(m.setAt) > flashTTL {
		return ""
	}
	return m.message
}
