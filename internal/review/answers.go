package review

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Answers maps clarifying questions to answers, preserving the order in
// which questions were first answered. Re-answering a question updates its
// value in place. The zero value is ready to use.
type Answers struct {
	order  []string
	values map[string]string
}

func NewAnswers() *Answers {
	return &Answers{}
}

// Set records an answer.
func (a *Answers) Set(question, answer string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[question]; !ok {
		a.order = append(a.order, question)
	}
	a.values[question] = answer
}

// Get returns the answer for question.
func (a *Answers) Get(question string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.values[question]
	return v, ok
}

// Len returns the number of answered questions.
func (a *Answers) Len() int {
	if a == nil {
		return 0
	}
	return len(a.order)
}

// All yields question/answer pairs in insertion order.
func (a *Answers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if a == nil {
			return
		}
		for _, q := range a.order {
			if !yield(q, a.values[q]) {
				return
			}
		}
	}
}

// Questions returns the answered questions in insertion order.
func (a *Answers) Questions() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.order...)
}

// Merge copies every pair from other into a.
func (a *Answers) Merge(other *Answers) {
	for q, ans := range other.All() {
		a.Set(q, ans)
	}
}

// MarshalJSON encodes the answers as an object in insertion order, or null
// when empty.
func (a *Answers) MarshalJSON() ([]byte, error) {
	if a.Len() == 0 {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range a.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(q)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.values[q])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
