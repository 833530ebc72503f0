package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"What are the key benefits?", "what are the key benefits"},
		{"  Does it run on  Linux/macOS?\n", "does it run on linux/macos"},
		{"Is snake_case OK?!", "is snake_case ok"},
		{"Qué es?", "qué es"},
		{"???", ""},
	}
	for _, tt := range tests {
		if got := NormalizeQuestion(tt.in); got != tt.want {
			t.Errorf("NormalizeQuestion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuestionsSimilar(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"what are the key benefits", "What are the key benefits?", true},
		{"How does this work?", "What are the key benefits?", false},
		{"What is the scope?", "What is the scope of the project?", true},
		{"Who?", "Who is it?", false},
		{"why now", "why now?", true},
		{"What is it", "What is it used for?", false},
		// Both sides must exceed ten characters for containment.
		{"what is the", "what is the target audience", true},
		{"what is th", "what is the target audience", false},
		// Word-level rephrasing is not a containment match.
		{"What is the project scope?", "What is the scope?", false},
	}
	for _, tt := range tests {
		if got := QuestionsSimilar(tt.a, tt.b); got != tt.want {
			t.Errorf("QuestionsSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFilterAnswered(t *testing.T) {
	answered := NewAnswers()
	answered.Set("What are the key benefits?", "Speed")
	answered.Set("What is the scope?", "Backend only")

	kept, dropped := FilterAnswered([]string{
		"what are the key benefits",
		"How does this work?",
		"What is the scope of the project?",
	}, answered)

	require.Equal(t, []string{"How does this work?"}, kept)
	require.Equal(t, []string{"what are the key benefits", "What is the scope of the project?"}, dropped)
}

func TestFilterAnswered_NoHistoryKeepsAll(t *testing.T) {
	kept, dropped := FilterAnswered([]string{"A?", "A?"}, nil)
	require.Equal(t, []string{"A?", "A?"}, kept)
	require.Nil(t, dropped)
}

func TestAnswers_OrderAndOverwrite(t *testing.T) {
	a := NewAnswers()
	a.Set("b?", "1")
	a.Set("a?", "2")
	a.Set("b?", "3")

	require.Equal(t, 2, a.Len())
	require.Equal(t, []string{"b?", "a?"}, a.Questions())
	v, ok := a.Get("b?")
	require.True(t, ok)
	require.Equal(t, "3", v)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.Equal(t, `{"b?":"3","a?":"2"}`, string(data))
}

func TestAnswers_EmptyMarshalsNull(t *testing.T) {
	var a *Answers
	data, err := json.Marshal(struct {
		A *Answers `json:"a"`
	}{a})
	require.NoError(t, err)
	require.Equal(t, `{"a":null}`, string(data))

	data, err = json.Marshal(NewAnswers())
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestAnswers_Merge(t *testing.T) {
	cum := NewAnswers()
	cum.Set("q1", "a1")
	iter := NewAnswers()
	iter.Set("q2", "a2")
	iter.Set("q1", "a1b")
	cum.Merge(iter)

	require.Equal(t, []string{"q1", "q2"}, cum.Questions())
	v, _ := cum.Get("q1")
	require.Equal(t, "a1b", v)
}
