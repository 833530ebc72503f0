package review

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minContainLen is the normalized length both questions must exceed before
// containment counts as a match.
const minContainLen = 10

// NormalizeQuestion lowercases q, removes punctuation other than slashes and
// collapses whitespace.
func NormalizeQuestion(q string) string {
	q = strings.ToLower(q)
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || r == '_' || r == '/' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// QuestionsSimilar reports whether two questions ask the same thing: their
// normalized forms are equal, or both are longer than ten characters and one
// contains the other.
func QuestionsSimilar(a, b string) bool {
	na, nb := NormalizeQuestion(a), NormalizeQuestion(b)
	if na == nb {
		return true
	}
	if utf8.RuneCountInString(na) > minContainLen && utf8.RuneCountInString(nb) > minContainLen {
		return strings.Contains(na, nb) || strings.Contains(nb, na)
	}
	return false
}

// FilterAnswered drops questions similar to any already answered one. It
// returns the kept and dropped questions in their original order.
func FilterAnswered(questions []string, answered *Answers) (kept, dropped []string) {
	kept = []string{}
	if answered.Len() == 0 {
		return append(kept, questions...), nil
	}
	for _, q := range questions {
		if isAnswered(q, answered) {
			dropped = append(dropped, q)
			continue
		}
		kept = append(kept, q)
	}
	return kept, dropped
}

func isAnswered(q string, answered *Answers) bool {
	for prev := range answered.All() {
		if QuestionsSimilar(q, prev) {
			return true
		}
	}
	return false
}
