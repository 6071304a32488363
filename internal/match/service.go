package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"talk-n-share/internal/livesync"
	"talk-n-share/internal/models"
	"talk-n-share/internal/storage"

	"github.com/sirupsen/logrus"
)

// Store is the persistence the match flow needs.
type Store interface {
	EnsureProfile(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, id string) (*models.User, error)
	CandidatePool(ctx context.Context, requesterID string, filter models.MatchFilter, limit int) ([]models.User, error)
	ActiveEphemeralSessionFor(ctx context.Context, userID string) (*models.MatchSession, error)
	CreateSession(ctx context.Context, session *models.MatchSession) error
	GetSession(ctx context.Context, id string) (*models.MatchSession, error)
	SetLike(ctx context.Context, id string, slot models.Slot) (*models.MatchSession, bool, error)
	EndSession(ctx context.Context, id, endedBy string) (*models.MatchSession, bool, error)
	FindActiveDirect(ctx context.Context, a, b string) (*models.MatchSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.MatchSession, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID string, before time.Time, limit int) ([]models.Message, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	CreateReport(ctx context.Context, report *models.Report) error
	CreateNotification(ctx context.Context, n *models.Notification) error
	RecordModeration(ctx context.Context, action *models.ModerationAction) error
}

// Claimer holds short-lived exclusive claims on users while pairing.
type Claimer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev livesync.Event) error
}

type URLSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type Options struct {
	PoolSize    int
	ClaimTTL    time.Duration
	AliasSecret []byte
	Signer      URLSigner
	Presence    PresenceChecker
	// Intn picks tie-breaks; defaults to a time-seeded source.
	Intn func(n int) int
	Now  func() time.Time
}

type Service struct {
	store  Store
	claims Claimer
	pub    Publisher
	log    *logrus.Logger
	opts   Options
}

func NewService(store Store, claims Claimer, pub Publisher, log *logrus.Logger, opts Options) *Service {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 50
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 10 * time.Second
	}
	if opts.Intn == nil {
		var mu sync.Mutex
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		opts.Intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return rng.Intn(n)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, claims: claims, pub: pub, log: log, opts: opts}
}

func claimKey(userID string) string { return "match:claim:" + userID }

// RequestMatch pairs the requester with the best available candidate and
// opens an anonymous session. If ctx is cancelled before a session is
// created nothing is left behind.
func (s *Service) RequestMatch(ctx context.Context, requesterID string, filter models.MatchFilter) (*SessionView, error) {
	filter = filter.Normalize()
	requester, err := s.store.EnsureProfile(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsActive {
		return nil, ErrUserInactive
	}
	if err := s.ensureFree(ctx, requesterID); err != nil {
		return nil, err
	}

	claimed, err := s.claims.SetNX(ctx, claimKey(requesterID), requesterID, s.opts.ClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: claim requester: %v", ErrSessionCreateFailed, err)
	}
	if !claimed {
		// another request from the same user, or someone pairing with them right now
		return nil, ErrAlreadyInSession
	}
	defer s.release(requesterID)

	// someone may have paired with the requester before the claim was taken
	if err := s.ensureFree(ctx, requesterID); err != nil {
		return nil, err
	}

	pool, err := s.store.CandidatePool(ctx, requesterID, filter, s.opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}
	ranked := Rank(requesterID, filter, pool, s.opts.Intn)

	log := s.log.WithFields(logrus.Fields{
		"requester_id": requesterID,
		"priority":     filter.Priority,
		"pool":         len(pool),
		"acceptable":   len(ranked),
	})

	for _, candidate := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session, err := s.pair(ctx, requesterID, candidate.ID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			continue
		}

		log.WithField("session_id", session.ID).Info("match session created")
		s.announceMatch(ctx, session)
		return s.ViewFor(ctx, requesterID, session)
	}

	log.Info("no candidate available")
	return nil, ErrNoCandidateFound
}

// pair claims candidateID and creates the session. A nil session with a nil
// error means the candidate was taken and the next one should be tried.
func (s *Service) pair(ctx context.Context, requesterID, candidateID string) (*models.MatchSession, error) {
	ok, err := s.claims.SetNX(ctx, claimKey(candidateID), requesterID, s.opts.ClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: claim candidate: %v", ErrSessionCreateFailed, err)
	}
	if !ok {
		return nil, nil
	}
	defer s.release(candidateID)

	// the pool may be a moment old
	if _, err := s.store.ActiveEphemeralSessionFor(ctx, candidateID); err == nil {
		return nil, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}

	session := models.NewMatchSession(requesterID, candidateID, models.KindEphemeral)
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}
	return session, nil
}

func (s *Service) release(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.claims.Del(ctx, claimKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to release match claim")
	}
}

func (s *Service) ensureFree(ctx context.Context, userID string) error {
	_, err := s.store.ActiveEphemeralSessionFor(ctx, userID)
	switch {
	case err == nil:
		return ErrAlreadyInSession
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) announceMatch(ctx context.Context, session *models.MatchSession) {
	for _, userID := range []string{session.ParticipantA, session.ParticipantB} {
		s.notify(ctx, userID, models.NotificationMatch, "New match",
			"Someone is waiting to talk with you.", session.ID)
		s.publish(ctx, livesync.Event{
			Type:    livesync.EventMatchFound,
			Topic:   livesync.UserTopic(userID),
			Session: session,
		})
	}
	s.publish(ctx, livesync.Event{
		Type:    livesync.EventSession,
		Topic:   livesync.SessionTopic(session.ID),
		Session: session,
	})
}

// CreateDirect returns the open direct session between two users, creating
// one if none exists.
func (s *Service) CreateDirect(ctx context.Context, requesterID, otherID string) (*SessionView, bool, error) {
	if requesterID == otherID {
		return nil, false, ErrSelfSession
	}
	requester, err := s.store.EnsureProfile(ctx, requesterID)
	if err != nil {
		return nil, false, err
	}
	if !requester.IsActive {
		return nil, false, ErrUserInactive
	}
	other, err := s.store.GetProfile(ctx, otherID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if !other.IsActive {
		return nil, false, ErrUserInactive
	}

	blocked, err := s.store.IsBlocked(ctx, requesterID, otherID)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, ErrBlocked
	}

	existing, err := s.store.FindActiveDirect(ctx, requesterID, otherID)
	if err == nil {
		view, err := s.ViewFor(ctx, requesterID, existing)
		return view, false, err
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	session := models.NewMatchSession(requesterID, otherID, models.KindDirect)
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}

	s.notify(ctx, otherID, models.NotificationDirect, "New conversation",
		"Someone started a conversation with you.", session.ID)
	s.publish(ctx, livesync.Event{
		Type:    livesync.EventDirectSession,
		Topic:   livesync.UserTopic(otherID),
		Session: session,
	})

	view, err := s.ViewFor(ctx, requesterID, session)
	return view, true, err
}

// participantSession loads the session and checks userID sits in it.
func (s *Service) participantSession(ctx context.Context, sessionID, userID string) (*models.MatchSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return session, nil
}

func (s *Service) Session(ctx context.Context, sessionID, viewerID string) (*SessionView, error) {
	session, err := s.participantSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.ViewFor(ctx, viewerID, session)
}

func (s *Service) List(ctx context.Context, viewerID string, limit int) ([]SessionView, error) {
	sessions, err := s.store.ListSessions(ctx, viewerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		view, err := s.ViewFor(ctx, viewerID, &sessions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// Like raises the caller's own flag. The seat is derived from the caller, so
// nobody can set the other participant's flag.
func (s *Service) Like(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	session, err := s.participantSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()

	if _, outcome, err := Apply(*session, EventLike, userID, now); err != nil {
		return nil, err
	} else if outcome == Unchanged {
		return s.ViewFor(ctx, userID, session)
	}

	updated, changed, err := s.store.SetLike(ctx, sessionID, session.SlotOf(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMutationRejected, err)
	}
	if !changed {
		// lost a race with an end or a duplicate like; classify against the fresh record
		if _, _, err := Apply(*updated, EventLike, userID, now); err != nil {
			return nil, err
		}
		return s.ViewFor(ctx, userID, updated)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
		"revealed":   updated.IsRevealed,
		"version":    updated.Version,
	}).Info("session liked")

	s.publishSession(ctx, updated)
	if updated.IsRevealed {
		for _, id := range []string{updated.ParticipantA, updated.ParticipantB} {
			s.notify(ctx, id, models.NotificationReveal, "It's mutual",
				"You both liked each other. Identities are now revealed.", updated.ID)
		}
	}
	return s.ViewFor(ctx, userID, updated)
}

// End closes the session for both participants. Ending twice is a no-op.
func (s *Service) End(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	if _, err := s.participantSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	updated, err := s.end(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return s.ViewFor(ctx, userID, updated)
}

// AdminEnd lets a moderator close any session.
func (s *Service) AdminEnd(ctx context.Context, sessionID, adminID, reason string) (*models.MatchSession, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	updated, err := s.end(ctx, sessionID, adminID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RecordModeration(ctx, &models.ModerationAction{
		ActorID:  adminID,
		Action:   models.ActionEndSession,
		TargetID: sessionID,
		Reason:   reason,
	}); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Error("failed to record moderation action")
	}
	return updated, nil
}

func (s *Service) end(ctx context.Context, sessionID, endedBy string) (*models.MatchSession, error) {
	updated, changed, err := s.store.EndSession(ctx, sessionID, endedBy)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMutationRejected, err)
	}
	if changed {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"ended_by":   endedBy,
			"version":    updated.Version,
		}).Info("session ended")
		s.publishSession(ctx, updated)
	}
	return updated, nil
}

// SendMessage appends a message to an active session.
func (s *Service) SendMessage(ctx context.Context, sessionID, senderID string, msg models.Message) (*MessageView, error) {
	session, err := s.participantSession(ctx, sessionID, senderID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: %w", ErrMutationRejected, ErrSessionEnded)
	}

	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" && msg.AttachmentKey == "" {
		return nil, ErrInvalidMessage
	}
	msg.ID = ""
	msg.SessionID = sessionID
	msg.SenderID = senderID

	if err := s.store.AppendMessage(ctx, &msg); err != nil {
		if errors.Is(err, storage.ErrSessionClosed) {
			return nil, fmt.Errorf("%w: %w", ErrMutationRejected, ErrSessionEnded)
		}
		return nil, err
	}

	s.publish(ctx, livesync.Event{
		Type:    livesync.EventMessage,
		Topic:   livesync.SessionTopic(sessionID),
		Session: session,
		Message: &msg,
	})
	view := s.ViewMessage(ctx, senderID, session, &msg)
	return &view, nil
}

// Messages lists a session's messages for a participant, masked as needed.
func (s *Service) Messages(ctx context.Context, sessionID, viewerID string, before time.Time, limit int) ([]MessageView, error) {
	session, err := s.participantSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, sessionID, before, limit)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(messages))
	for i := range messages {
		out = append(out, s.ViewMessage(ctx, viewerID, session, &messages[i]))
	}
	return out, nil
}

// Typing relays a typing indicator to the session topic. Nothing is stored.
func (s *Service) Typing(ctx context.Context, sessionID, userID string, typing bool) error {
	session, err := s.participantSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if session.Status != models.StatusActive {
		return ErrSessionEnded
	}
	s.publish(ctx, livesync.Event{
		Type:    livesync.EventTyping,
		Topic:   livesync.SessionTopic(sessionID),
		ActorID: userID,
		Typing:  typing,
	})
	return nil
}

// ReportPartner files a report against the other participant. It works for
// anonymous sessions, where the reporter never learns who that is.
func (s *Service) ReportPartner(ctx context.Context, sessionID, reporterID, reason, description string) (*models.Report, error) {
	session, err := s.participantSession(ctx, sessionID, reporterID)
	if err != nil {
		return nil, err
	}
	sid := session.ID
	report := &models.Report{
		ReporterID:  reporterID,
		ReportedID:  session.PartnerOf(reporterID),
		SessionID:   &sid,
		Reason:      reason,
		Description: description,
		Status:      models.ReportPending,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"report_id":  report.ID,
		"reason":     reason,
	}).Info("session partner reported")
	return report, nil
}

func (s *Service) publishSession(ctx context.Context, session *models.MatchSession) {
	s.publish(ctx, livesync.Event{
		Type:    livesync.EventSession,
		Topic:   livesync.SessionTopic(session.ID),
		Session: session,
	})
}

// publish failures never undo a committed write; subscribers resync instead.
func (s *Service) publish(ctx context.Context, ev livesync.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"topic": ev.Topic,
			"type":  ev.Type,
		}).Warn("live sync publish failed")
	}
}

func (s *Service) notify(ctx context.Context, userID, kind, title, body, sessionID string) {
	data, _ := json.Marshal(map[string]string{"session_id": sessionID})
	n := &models.Notification{
		UserID: userID,
		Type:   kind,
		Title:  title,
		Body:   body,
		Data:   string(data),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to store notification")
	}
}
