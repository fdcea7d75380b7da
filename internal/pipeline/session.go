package pipeline

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// SessionIDPrefix is prepended to generated session ids
const SessionIDPrefix = "session-"

// Session is the state of one conversation's acquisition
type Session struct {
	ID        string
	ChatID    int64
	Source    model.SourceReference
	Dir       string // working directory owned by this session
	CreatedAt time.Time

	mu      sync.Mutex
	state   model.SessionState
	catalog *model.Catalog
	ladder  model.QualityLadder
	files   []string
}

func newSession(chatID int64, ref model.SourceReference, workDir string) *Session {
	id := generateSessionID()
	return &Session{
		ID:        id,
		ChatID:    chatID,
		Source:    ref,
		Dir:       filepath.Join(workDir, id),
		CreatedAt: time.Now(),
		state:     model.SessionIdle,
	}
}

// State returns the current lifecycle state
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Catalog returns the loaded catalog and ladder
func (s *Session) Catalog() (*model.Catalog, model.QualityLadder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog, s.ladder
}

// Files returns every working file recorded for the session
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

func (s *Session) transition(next model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(next)
}

func (s *Session) transitionLocked(next model.SessionState) error {
	if !s.state.CanTransition(next) {
		return fmt.Errorf("session %s: illegal transition %s -> %s", s.ID, s.state, next)
	}
	s.state = next
	return nil
}

func (s *Session) offer(cat *model.Catalog, ladder model.QualityLadder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transitionLocked(model.SessionCatalogReady); err != nil {
		return err
	}
	s.catalog = cat
	s.ladder = ladder
	return nil
}

// begin moves a ready session into Selecting. Only one caller wins.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.IsActive():
		return model.ErrSessionBusy
	case s.state != model.SessionCatalogReady:
		return model.ErrSessionExpired
	}
	return s.transitionLocked(model.SessionSelecting)
}

// retire ends a session that is not in flight so a later begin fails with
// model.ErrSessionExpired. It reports false for an active session.
func (s *Session) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsActive() {
		return false
	}
	if !s.state.IsFinished() {
		s.state = model.SessionFailed
	}
	return true
}

// fail moves the session to Failed unless it already finished
func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsFinished() {
		s.state = model.SessionFailed
	}
}

func (s *Session) track(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			s.files = append(s.files, p)
		}
	}
}

// generateSessionID generates a time-ordered session id
func generateSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return fmt.Sprintf(SessionIDPrefix+"%d", time.Now().UnixNano())
	}
	return SessionIDPrefix + id.String()
}
