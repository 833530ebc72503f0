package review

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParseResult is the outcome of Parse. Review is always usable: on failure
// it holds Fallback().
type ParseResult struct {
	Review Review
	// Err is set when the response was not a JSON object.
	Err error
	// Dropped lists patch operations that could not be decoded.
	Dropped []error
}

// OK reports whether the response parsed.
func (r ParseResult) OK() bool { return r.Err == nil }

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Parse normalizes a raw reviewer response. Missing or mistyped fields get
// their defaults (false, MissingScore, empty lists) and the score is clamped.
func Parse(raw string) ParseResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeBlock(raw)), &fields); err != nil || fields == nil {
		if err == nil {
			err = fmt.Errorf("reviewer response is null")
		}
		return ParseResult{Review: Fallback(), Err: fmt.Errorf("parse reviewer feedback: %w", err)}
	}

	r := Review{
		Accept:              boolField(fields["accept"]),
		Score:               ClampScore(scoreField(fields["score"])),
		MajorRewrite:        boolField(fields["major_rewrite"]),
		Issues:              stringsField(fields["issues"]),
		Suggestions:         stringsField(fields["suggestions"]),
		ClarifyingQuestions: stringsField(fields["clarifying_questions"]),
		Changes:             []PatchOperation{},
	}

	var res ParseResult
	var rawChanges []json.RawMessage
	if json.Unmarshal(fields["changes"], &rawChanges) == nil {
		for _, rc := range rawChanges {
			op, err := DecodePatch(rc)
			if err != nil {
				res.Dropped = append(res.Dropped, err)
				continue
			}
			r.Changes = append(r.Changes, op)
		}
	}
	res.Review = r
	return res
}

func boolField(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

// scoreField accepts JSON numbers and numeric strings, rounding fractions.
func scoreField(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return MissingScore
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return MissingScore
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return MissingScore
		}
	}
	if math.IsNaN(f) {
		return MissingScore
	}
	f = math.Round(f)
	if f > math.MaxInt32 {
		return MaxScore
	}
	if f < math.MinInt32 {
		return MinScore
	}
	return int(f)
}

// stringsField keeps the string elements of a JSON array.
func stringsField(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}
