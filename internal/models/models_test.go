package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSession_Validate(t *testing.T) {
	s := NewMatchSession("a", "b", KindEphemeral)
	assert.NoError(t, s.Validate())
	assert.Equal(t, int64(1), s.Version)
	assert.NotEmpty(t, s.ID)

	same := NewMatchSession("a", "a", KindEphemeral)
	assert.ErrorIs(t, same.Validate(), ErrInvalidParticipants)

	badKind := NewMatchSession("a", "b", SessionKind("group"))
	assert.ErrorIs(t, badKind.Validate(), ErrInvalidKind)

	lagging := NewMatchSession("a", "b", KindEphemeral)
	lagging.LikedByA, lagging.LikedByB = true, true
	assert.ErrorIs(t, lagging.Validate(), ErrRevealMismatch)
	lagging.IsRevealed = true
	assert.NoError(t, lagging.Validate())
}

func TestMatchSession_Slots(t *testing.T) {
	s := NewMatchSession("a", "b", KindEphemeral)

	assert.Equal(t, SlotA, s.SlotOf("a"))
	assert.Equal(t, SlotB, s.SlotOf("b"))
	assert.Equal(t, SlotNone, s.SlotOf("c"))
	assert.Equal(t, SlotNone, s.SlotOf(""))
	assert.Equal(t, "b", s.PartnerOf("a"))
	assert.Equal(t, "", s.PartnerOf("c"))

	assert.Equal(t, "liked_by_a", SlotA.LikeColumn())
	assert.Equal(t, "liked_by_a", SlotB.OtherLikeColumn())
	assert.Equal(t, "", SlotNone.LikeColumn())
}

func TestMatchSession_IdentityHidden(t *testing.T) {
	s := NewMatchSession("a", "b", KindEphemeral)
	assert.True(t, s.IdentityHidden())
	s.LikedByA, s.LikedByB, s.IsRevealed = true, true, true
	assert.False(t, s.IdentityHidden())

	d := NewMatchSession("a", "b", KindDirect)
	assert.False(t, d.IdentityHidden())
}

func TestMatchFilter_Score(t *testing.T) {
	u := User{Gender: GenderFemale, Region: "europe", ZodiacGroup: ZodiacWater}

	f := MatchFilter{Gender: "female", Region: "europe", ZodiacGroup: "fire"}
	assert.Equal(t, 3, f.ActiveDimensions())
	assert.Equal(t, 2, f.Score(u))

	all := MatchFilter{}.Normalize()
	assert.Equal(t, 0, all.ActiveDimensions())
	assert.Equal(t, 0, all.Score(u))
	assert.Equal(t, PriorityBalanced, all.Priority)
}

func TestZodiacGroupOf(t *testing.T) {
	assert.Equal(t, ZodiacFire, ZodiacGroupOf("leo"))
	assert.Equal(t, ZodiacWater, ZodiacGroupOf("pisces"))
	assert.Equal(t, ZodiacGroup(""), ZodiacGroupOf("ophiuchus"))

	u := &User{ZodiacSign: "virgo"}
	assert.NoError(t, u.BeforeSave(nil))
	assert.Equal(t, ZodiacEarth, u.ZodiacGroup)
}

func TestIsRegion(t *testing.T) {
	assert.True(t, IsRegion("oceania"))
	assert.False(t, IsRegion("antarctica"))
}
