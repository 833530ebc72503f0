package loop

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docloop/internal/review"
)

// AcceptPolicy decides when a review ends the loop successfully.
type AcceptPolicy string

const (
	// AcceptByScore accepts when the score reaches the threshold.
	AcceptByScore AcceptPolicy = "score"
	// AcceptByScoreOrVerdict also accepts when the reviewer sets accept=true.
	AcceptByScoreOrVerdict AcceptPolicy = "score_or_accept"
)

// ParseAcceptPolicy maps a config string to a policy. Empty means AcceptByScore.
func ParseAcceptPolicy(s string) (AcceptPolicy, error) {
	switch AcceptPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AcceptByScore:
		return AcceptByScore, nil
	case AcceptByScoreOrVerdict:
		return AcceptByScoreOrVerdict, nil
	}
	return "", fmt.Errorf("unknown accept policy %q (want %q or %q)", s, AcceptByScore, AcceptByScoreOrVerdict)
}

// Accepts reports whether rv ends the loop.
func (p AcceptPolicy) Accepts(rv review.Review, threshold int) bool {
	if rv.Score >= threshold {
		return true
	}
	return p == AcceptByScoreOrVerdict && rv.Accept
}
