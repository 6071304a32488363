package models

// Any leaves a filter dimension unconstrained.
const Any = "any"

type Priority string

const (
	PriorityRelaxed  Priority = "relaxed"
	PriorityBalanced Priority = "balanced"
	PriorityStrict   Priority = "strict"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityRelaxed, PriorityBalanced, PriorityStrict:
		return true
	}
	return false
}

// MatchFilter narrows the candidate pool. Empty values are treated as Any.
type MatchFilter struct {
	Gender      string   `json:"gender" binding:"omitempty,oneof=any male female others"`
	Region      string   `json:"region" binding:"omitempty,region_or_any"`
	ZodiacGroup string   `json:"zodiac_group" binding:"omitempty,oneof=any fire earth air water"`
	Priority    Priority `json:"priority" binding:"omitempty,oneof=relaxed balanced strict"`
}

// Normalize fills blanks with Any and defaults the priority to balanced.
func (f MatchFilter) Normalize() MatchFilter {
	if f.Gender == "" {
		f.Gender = Any
	}
	if f.Region == "" {
		f.Region = Any
	}
	if f.ZodiacGroup == "" {
		f.ZodiacGroup = Any
	}
	if !f.Priority.Valid() {
		f.Priority = PriorityBalanced
	}
	return f
}

// ActiveDimensions counts the constrained dimensions.
func (f MatchFilter) ActiveDimensions() int {
	n := 0
	for _, v := range []string{f.Gender, f.Region, f.ZodiacGroup} {
		if v != "" && v != Any {
			n++
		}
	}
	return n
}

// Score is the number of constrained dimensions the user satisfies.
func (f MatchFilter) Score(u User) int {
	score := 0
	if f.Gender != "" && f.Gender != Any && string(u.Gender) == f.Gender {
		score++
	}
	if f.Region != "" && f.Region != Any && u.Region == f.Region {
		score++
	}
	if f.ZodiacGroup != "" && f.ZodiacGroup != Any && string(u.ZodiacGroup) == f.ZodiacGroup {
		score++
	}
	return score
}
