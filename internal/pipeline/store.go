package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// DefaultSessionTTL is how long an offered catalog stays selectable
const DefaultSessionTTL = 30 * time.Minute

// Store keeps at most one session per chat. Idle and offered sessions
// expire after the TTL; sessions in flight never expire.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewStore creates a store. onEvict runs for every session that leaves the
// store through expiry or Delete, but not when Put replaces it.
func NewStore(ttl time.Duration, onEvict func(*Session)) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	c := cache.New(ttl, ttl/2)
	if onEvict != nil {
		c.OnEvicted(func(_ string, v interface{}) {
			if s, ok := v.(*Session); ok {
				onEvict(s)
			}
		})
	}
	return &Store{cache: c}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Get returns the chat's live session
func (st *Store) Get(chatID int64) (*Session, bool) {
	v, ok := st.cache.Get(chatKey(chatID))
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// Put stores s as the chat's session with the default TTL
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache.SetDefault(chatKey(s.ChatID), s)
}

// Pin keeps s from expiring while it is in flight
func (st *Store) Pin(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.currentLocked(s) {
		st.cache.Set(chatKey(s.ChatID), s, cache.NoExpiration)
	}
}

// IsCurrent reports whether s is still the chat's session
func (st *Store) IsCurrent(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.currentLocked(s)
}

func (st *Store) currentLocked(s *Session) bool {
	v, ok := st.cache.Get(chatKey(s.ChatID))
	return ok && v == s
}

// Delete removes the chat's session and returns it
func (st *Store) Delete(chatID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.Get(chatID)
	if ok {
		st.cache.Delete(chatKey(chatID))
	}
	return s, ok
}

// DeleteIf removes s only if it is still the chat's session
func (st *Store) DeleteIf(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.currentLocked(s) {
		return false
	}
	st.cache.Delete(chatKey(s.ChatID))
	return true
}

// Replace makes next the chat's session. A current session in flight is kept
// and model.ErrSessionBusy returned; any other is retired and evicted. The
// check and the swap happen under one lock, so a concurrent begin on the old
// session either wins and makes Replace fail or loses with ErrSessionExpired.
func (st *Store) Replace(next *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.retireLocked(next.ChatID, next); err != nil {
		return err
	}
	st.cache.SetDefault(chatKey(next.ChatID), next)
	return nil
}

// Retire evicts the chat's session unless it is in flight
func (st *Store) Retire(chatID int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.retireLocked(chatID, nil)
}

func (st *Store) retireLocked(chatID int64, keep *Session) error {
	prev, ok := st.Get(chatID)
	if !ok || prev == keep {
		return nil
	}
	if !prev.retire() {
		return model.ErrSessionBusy
	}
	st.cache.Delete(chatKey(chatID))
	return nil
}

// Len returns the number of stored sessions
func (st *Store) Len() int {
	return st.cache.ItemCount()
}

// InUse reports whether path belongs to a stored session
func (st *Store) InUse(path string) bool {
	path = filepath.Clean(path)
	for _, item := range st.cache.Items() {
		s, ok := item.Object.(*Session)
		if !ok {
			continue
		}
		dir := filepath.Clean(s.Dir)
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
