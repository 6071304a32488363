package match

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"talk-n-share/internal/livesync"
	"talk-n-share/internal/models"
	"talk-n-share/internal/storage"
)

// memStore mirrors the conditional updates of storage.Service in memory.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	sessions      map[string]*models.MatchSession
	messages      []models.Message
	blocks        map[[2]string]bool
	reports       []models.Report
	notifications []models.Notification
	moderation    []models.ModerationAction

	createErr error
	poolErr   error
}

func newMemStore(users ...models.User) *memStore {
	st := &memStore{
		users:    make(map[string]*models.User),
		sessions: make(map[string]*models.MatchSession),
		blocks:   make(map[[2]string]bool),
	}
	for i := range users {
		u := users[i]
		st.users[u.ID] = &u
	}
	return st
}

func active(id string, g models.Gender) models.User {
	u := models.NewUser(id)
	u.DisplayName = "name-" + id
	u.Gender = g
	return *u
}

func (m *memStore) EnsureProfile(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	u := models.NewUser(id)
	m.users[id] = u
	c := *u
	return &c, nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) inEphemeral(userID string) bool {
	for _, s := range m.sessions {
		if s.Status == models.StatusActive && s.Kind == models.KindEphemeral && s.HasParticipant(userID) {
			return true
		}
	}
	return false
}

func (m *memStore) CandidatePool(_ context.Context, requesterID string, _ models.MatchFilter, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poolErr != nil {
		return nil, m.poolErr
	}
	var out []models.User
	for id, u := range m.users {
		if id == requesterID || !u.IsActive || !u.AllowMatching || m.inEphemeral(id) {
			continue
		}
		if m.blocks[[2]string{requesterID, id}] || m.blocks[[2]string{id, requesterID}] {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ActiveEphemeralSessionFor(_ context.Context, userID string) (*models.MatchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Status == models.StatusActive && s.Kind == models.KindEphemeral && s.HasParticipant(userID) {
			c := *s
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) CreateSession(_ context.Context, s *models.MatchSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.CreatedAt = time.Now()
	c := *s
	m.sessions[s.ID] = &c
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*models.MatchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SetLike(_ context.Context, id string, slot models.Slot) (*models.MatchSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, storage.ErrNotFound
	}
	if s.Status != models.StatusActive || s.Kind != models.KindEphemeral || s.LikedBy(slot) {
		c := *s
		return &c, false, nil
	}
	if slot == models.SlotA {
		s.IsRevealed = s.LikedByB
		s.LikedByA = true
	} else {
		s.IsRevealed = s.LikedByA
		s.LikedByB = true
	}
	s.Version++
	c := *s
	return &c, true, nil
}

func (m *memStore) EndSession(_ context.Context, id, endedBy string) (*models.MatchSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, storage.ErrNotFound
	}
	if s.Status != models.StatusActive {
		c := *s
		return &c, false, nil
	}
	now := time.Now()
	by := endedBy
	s.Status = models.StatusEnded
	s.EndedAt = &now
	s.EndedBy = &by
	s.Version++
	c := *s
	return &c, true, nil
}

func (m *memStore) FindActiveDirect(_ context.Context, a, b string) (*models.MatchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Status == models.StatusActive && s.Kind == models.KindDirect && s.HasParticipant(a) && s.HasParticipant(b) {
			c := *s
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListSessions(_ context.Context, userID string, limit int) ([]models.MatchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MatchSession
	for _, s := range m.sessions {
		if s.HasParticipant(userID) {
			out = append(out, *s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[msg.SessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if s.Status != models.StatusActive {
		return storage.ErrSessionClosed
	}
	if msg.ID == "" {
		msg.ID = "msg-" + time.Now().Format("150405.000000000")
	}
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ListMessages(_ context.Context, sessionID string, _ time.Time, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) IsBlocked(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[[2]string{a, b}] || m.blocks[[2]string{b, a}], nil
}

func (m *memStore) CreateReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uint(len(m.reports) + 1)
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) RecordModeration(_ context.Context, a *models.ModerationAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moderation = append(m.moderation, *a)
	return nil
}

type memClaims struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	calls []string
}

func newMemClaims() *memClaims { return &memClaims{held: make(map[string]bool)} }

func (c *memClaims) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, key)
	if c.err != nil {
		return false, c.err
	}
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memClaims) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.held, k)
	}
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []livesync.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev livesync.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

var errStoreDown = errors.New("store unavailable")
