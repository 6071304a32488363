package storage

import (
	"testing"
	"time"

	"talk-n-share/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// The tests below only check the rendered SQL. The state machine they encode
// is exercised against an in-memory store by TestLikeRevealEnd,
// TestEnd_IsIdempotent and TestApply_RandomSequencesKeepInvariants in the
// match package, and against Postgres by sessions_integration_test.go.

// sqlOnly opens a GORM handle that renders statements without a server.
func sqlOnly(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=talk dbname=talk sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestLikeQuery_WritesOwnFlagAndRevealTogether(t *testing.T) {
	db := sqlOnly(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return likeQuery(tx, &models.MatchSession{}, "s1", models.SlotA)
	})

	assert.Contains(t, sql, `UPDATE "match_sessions" SET`)
	assert.Contains(t, sql, `"liked_by_a"=true`)
	assert.Contains(t, sql, `"is_revealed"=liked_by_b`)
	assert.Contains(t, sql, `"version"=version + 1`)
	assert.Contains(t, sql, `status = 'active'`)
	assert.Contains(t, sql, `kind = 'ephemeral_match'`)
	assert.Contains(t, sql, `liked_by_a = false`)
	assert.NotContains(t, sql, `"liked_by_b"=`)
	assert.Contains(t, sql, `RETURNING`)
}

func TestLikeQuery_SlotB(t *testing.T) {
	db := sqlOnly(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return likeQuery(tx, &models.MatchSession{}, "s1", models.SlotB)
	})

	assert.Contains(t, sql, `"liked_by_b"=true`)
	assert.Contains(t, sql, `"is_revealed"=liked_by_a`)
	assert.NotContains(t, sql, `"liked_by_a"=`)
}

func TestEndQuery_OnlyTouchesActiveRows(t *testing.T) {
	db := sqlOnly(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return endQuery(tx, &models.MatchSession{}, "s1", "u1", at)
	})

	assert.Contains(t, sql, `"status"='ended'`)
	assert.Contains(t, sql, `"ended_by"='u1'`)
	assert.Contains(t, sql, `"version"=version + 1`)
	assert.Contains(t, sql, `status = 'active'`)
	assert.NotContains(t, sql, `liked_by`)
}

func TestPoolQuery_ExcludesAndRanks(t *testing.T) {
	db := sqlOnly(t)
	s := NewService(db)
	filter := models.MatchFilter{Gender: "female", Region: models.Any, ZodiacGroup: "fire"}

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var users []models.User
		return s.poolQuery(tx, "me", filter, 50).Find(&users)
	})

	assert.Contains(t, sql, `users.id <> 'me'`)
	assert.Contains(t, sql, `users.is_active = true AND users.allow_matching = true`)
	assert.Contains(t, sql, `blocker_id = 'me'`)
	assert.Contains(t, sql, `blocked_id = 'me'`)
	assert.Contains(t, sql, `NOT EXISTS (SELECT 1 FROM match_sessions ms`)
	assert.Contains(t, sql, `CASE WHEN users.gender = 'female' THEN 1 ELSE 0 END + CASE WHEN users.zodiac_group = 'fire'`)
	assert.NotContains(t, sql, `users.region =`)
	assert.Contains(t, sql, `users.last_seen_at DESC NULLS LAST`)
	assert.Contains(t, sql, `LIMIT 50`)
}

func TestScoreExpr_AllAny(t *testing.T) {
	sql, vars := scoreExpr(models.MatchFilter{}.Normalize())
	assert.Empty(t, sql)
	assert.Empty(t, vars)
}
