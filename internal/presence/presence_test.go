package presence

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"talk-n-share/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type scoresMock struct{ mock.Mock }

func (m *scoresMock) ZAddScore(ctx context.Context, key string, member string, score float64) error {
	return m.Called(ctx, key, member, score).Error(0)
}

func (m *scoresMock) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	args := m.Called(ctx, key, member)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *scoresMock) ZRemRangeByScore(ctx context.Context, key string, min, max string) error {
	return m.Called(ctx, key, min, max).Error(0)
}

type lastSeenMock struct{ mock.Mock }

func (m *lastSeenMock) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(scores Scores, store LastSeenStore) *Tracker {
	tr := NewTracker(scores, store, 2*time.Minute, logger.Discard())
	tr.now = func() time.Time { return now }
	return tr
}

func TestOnlineAt(t *testing.T) {
	w := 2 * time.Minute
	assert.True(t, onlineAt(now, now, w))
	assert.True(t, onlineAt(now.Add(-2*time.Minute), now, w))
	assert.False(t, onlineAt(now.Add(-2*time.Minute-time.Second), now, w))
	assert.False(t, onlineAt(now.Add(time.Minute), now, w))
}

func TestTouch_WritesScoreAndLastSeen(t *testing.T) {
	scores := &scoresMock{}
	store := &lastSeenMock{}
	scores.On("ZAddScore", mock.Anything, lastSeenKey, "u1", float64(now.Unix())).Return(nil)
	store.On("TouchLastSeen", mock.Anything, "u1", now).Return(nil)

	require.NoError(t, newTestTracker(scores, store).Touch(context.Background(), "u1"))
	scores.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestTouch_StoreFailureIsNotFatal(t *testing.T) {
	scores := &scoresMock{}
	store := &lastSeenMock{}
	scores.On("ZAddScore", mock.Anything, lastSeenKey, "u1", mock.Anything).Return(nil)
	store.On("TouchLastSeen", mock.Anything, "u1", mock.Anything).Return(errors.New("db down"))

	assert.NoError(t, newTestTracker(scores, store).Touch(context.Background(), "u1"))
}

func TestIsOnline(t *testing.T) {
	scores := &scoresMock{}
	scores.On("ZScore", mock.Anything, lastSeenKey, "fresh").Return(float64(now.Add(-30*time.Second).Unix()), true, nil)
	scores.On("ZScore", mock.Anything, lastSeenKey, "stale").Return(float64(now.Add(-10*time.Minute).Unix()), true, nil)
	scores.On("ZScore", mock.Anything, lastSeenKey, "never").Return(float64(0), false, nil)
	tr := newTestTracker(scores, nil)

	online, err := tr.IsOnline(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, online)

	online, err = tr.IsOnline(context.Background(), "stale")
	require.NoError(t, err)
	assert.False(t, online)

	online, err = tr.IsOnline(context.Background(), "never")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPrune(t *testing.T) {
	scores := &scoresMock{}
	cutoff := now.Add(-24 * time.Hour).Unix()
	scores.On("ZRemRangeByScore", mock.Anything, lastSeenKey, "-inf", "("+strconv.FormatInt(cutoff, 10)).Return(nil)

	require.NoError(t, newTestTracker(scores, nil).Prune(context.Background(), 24*time.Hour))
	scores.AssertExpectations(t)
}
