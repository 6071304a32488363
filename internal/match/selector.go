package match

import "talk-n-share/internal/models"

// Rank orders the pool for a requester. The first element is the selection.
//
// With no constrained dimension every candidate is acceptable in random
// order. relaxed accepts any candidate matching at least one dimension, in
// random order. balanced ranks by score and falls back down to score 0.
// strict ranks by score but never offers a candidate that matches nothing.
// Equal scores are shuffled with intn.
func Rank(requesterID string, filter models.MatchFilter, pool []models.User, intn func(int) int) []models.User {
	filter = filter.Normalize()

	candidates := make([]models.User, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, u := range pool {
		if u.ID == requesterID || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		candidates = append(candidates, u)
	}

	if filter.ActiveDimensions() == 0 {
		shuffle(candidates, intn)
		return candidates
	}

	tiers := make(map[int][]models.User)
	for _, u := range candidates {
		score := filter.Score(u)
		tiers[score] = append(tiers[score], u)
	}

	if filter.Priority == models.PriorityRelaxed {
		var acceptable []models.User
		for score := 1; score <= filter.ActiveDimensions(); score++ {
			acceptable = append(acceptable, tiers[score]...)
		}
		shuffle(acceptable, intn)
		return acceptable
	}

	minScore := 0
	if filter.Priority == models.PriorityStrict {
		minScore = 1
	}

	ranked := make([]models.User, 0, len(candidates))
	for score := filter.ActiveDimensions(); score >= minScore; score-- {
		tier := tiers[score]
		shuffle(tier, intn)
		ranked = append(ranked, tier...)
	}
	return ranked
}

// Select returns the best ranked candidate or ErrNoCandidateFound.
func Select(requesterID string, filter models.MatchFilter, pool []models.User, intn func(int) int) (models.User, error) {
	ranked := Rank(requesterID, filter, pool, intn)
	if len(ranked) == 0 {
		return models.User{}, ErrNoCandidateFound
	}
	return ranked[0], nil
}

// shuffle is a Fisher-Yates shuffle driven by intn.
func shuffle(users []models.User, intn func(int) int) {
	for i := len(users) - 1; i > 0; i-- {
		j := intn(i + 1)
		users[i], users[j] = users[j], users[i]
	}
}
