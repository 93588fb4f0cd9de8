package domain

import (
	"strconv"
	"strings"
)

// RatingAbsent marks a rating the source did not provide. Zero is a real score.
const RatingAbsent = -1.0

// Rating is a per-source score. Raw keeps the source text when it was not numeric.
type Rating struct {
	Score float64 `json:"score" yaml:"score"`
	Raw   string  `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// NoRating returns the absent sentinel.
func NoRating() Rating {
	return Rating{Score: RatingAbsent}
}

// NewRating wraps a numeric score.
func NewRating(score float64) Rating {
	if score < 0 {
		return NoRating()
	}
	return Rating{Score: score}
}

// ParseRating parses score text. Empty text is absent; unparseable text is
// kept in Raw with an absent score.
func ParseRating(s string) Rating {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoRating()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return Rating{Score: RatingAbsent, Raw: s}
	}
	return Rating{Score: f}
}

func (r Rating) Present() bool {
	return r.Score >= 0
}

// InScale reports whether the score sits in the 0..10 range stores accept.
func (r Rating) InScale() bool {
	return r.Score >= 0 && r.Score <= 10
}

func (r Rating) String() string {
	if r.Present() {
		return strconv.FormatFloat(r.Score, 'f', 1, 64)
	}
	if r.Raw != "" {
		return r.Raw
	}
	return "-"
}
