package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const lastSeenKey = "presence:last_seen"

// Scores is the sorted-set access the tracker needs.
type Scores interface {
	ZAddScore(ctx context.Context, key string, member string, score float64) error
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max string) error
}

// LastSeenStore persists the timestamp the candidate pool is ordered by.
type LastSeenStore interface {
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// Tracker answers "is this user online" from heartbeat timestamps.
type Tracker struct {
	scores Scores
	store  LastSeenStore
	window time.Duration
	log    *logrus.Logger
	now    func() time.Time
}

func NewTracker(scores Scores, store LastSeenStore, window time.Duration, log *logrus.Logger) *Tracker {
	return &Tracker{scores: scores, store: store, window: window, log: log, now: time.Now}
}

// Touch records activity for userID.
func (t *Tracker) Touch(ctx context.Context, userID string) error {
	now := t.now()
	if err := t.scores.ZAddScore(ctx, lastSeenKey, userID, float64(now.Unix())); err != nil {
		return err
	}
	if t.store != nil {
		if err := t.store.TouchLastSeen(ctx, userID, now); err != nil {
			t.log.WithError(err).WithField("user_id", userID).Warn("failed to persist last seen")
		}
	}
	return nil
}

func (t *Tracker) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	score, ok, err := t.scores.ZScore(ctx, lastSeenKey, userID)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(int64(score), 0), true, nil
}

func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	seen, ok, err := t.LastSeen(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return onlineAt(seen, t.now(), t.window), nil
}

// Prune drops entries older than keep.
func (t *Tracker) Prune(ctx context.Context, keep time.Duration) error {
	cutoff := t.now().Add(-keep).Unix()
	return t.scores.ZRemRangeByScore(ctx, lastSeenKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
}

// Run prunes periodically until ctx is done.
func (t *Tracker) Run(ctx context.Context, every, keep time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Prune(ctx, keep); err != nil {
				t.log.WithError(err).Warn("presence prune failed")
			}
		}
	}
}

func onlineAt(lastSeen, now time.Time, window time.Duration) bool {
	return !lastSeen.After(now) && now.Sub(lastSeen) <= window
}
