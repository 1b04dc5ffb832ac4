// Package decision turns a profile and the user's filters into a like/nope
// call. The happy path is stochastic on purpose: a fixed pattern over a long
// session is itself a detection signal, so the like ratio is the single knob
// controlling the split.
package decision

import (
	"math/rand"
	"strings"
)

// Outcome is the swipe verdict
type Outcome int

const (
	Nope Outcome = iota
	Like
)

func (o Outcome) String() string {
	if o == Like {
		return "like"
	}
	return "nope"
}

// Filters are the user-configured gates, checked in order
type Filters struct {
	// Keywords: when non-empty, at least one must appear in the bio
	Keywords []string
	// MinPhotos forces nope below this photo count
	MinPhotos int
	// LikeRatio in [0,1]: probability of a like once the gates pass
	LikeRatio float64
}

// ProfileView is the slice of a profile the decision needs
type ProfileView struct {
	Bio        string
	PhotoCount int
}

// Decide applies the filter rules in order; the first matching rule wins.
// rng is injected so sessions can share one seeded source and tests can pin
// the draw.
func Decide(p ProfileView, f Filters, rng *rand.Rand) Outcome {
	if len(f.Keywords) > 0 && !keywordMatch(p.Bio, f.Keywords) {
		return Nope
	}

	if f.MinPhotos > 0 && p.PhotoCount < f.MinPhotos {
		return Nope
	}

	if rng.Float64() < f.LikeRatio {
		return Like
	}
	return Nope
}

func keywordMatch(bio string, keywords []string) bool {
	lower := strings.ToLower(bio)
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
