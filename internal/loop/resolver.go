package loop

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dgallion1/docloop/internal/knowledge"
)

// QuestionContext is what a resolver may use to answer a question.
type QuestionContext struct {
	Idea       string
	References []knowledge.Reference
	Draft      string
}

// QuestionResolver answers one clarifying question.
type QuestionResolver interface {
	Resolve(ctx context.Context, question string, qc QuestionContext) (string, error)
}

// Answerer is the writer capability used for automated answers.
type Answerer interface {
	AnswerClarifyingQuestion(ctx context.Context, question, idea string, refs []knowledge.Reference, guidelines, currentDraft string) (string, error)
}

// AutomatedResolver answers questions with the writer model.
type AutomatedResolver struct {
	writer     Answerer
	guidelines string
	out        io.Writer
}

func NewAutomatedResolver(writer Answerer, guidelines string, out io.Writer) *AutomatedResolver {
	if out == nil {
		out = io.Discard
	}
	return &AutomatedResolver{writer: writer, guidelines: guidelines, out: out}
}

func (r *AutomatedResolver) Resolve(ctx context.Context, question string, qc QuestionContext) (string, error) {
	fmt.Fprintf(r.out, "? %s\n", question)
	answer, err := r.writer.AnswerClarifyingQuestion(ctx, question, qc.Idea, qc.References, r.guidelines, qc.Draft)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(r.out, "Auto-answer: %s\n", answer)
	return answer, nil
}

const maxAnswerLine = 1 << 20

// InteractiveResolver reads one line per question from an operator. End of
// input or an Interrupt yields an empty answer.
type InteractiveResolver struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string

	mu      sync.Mutex
	pending chan struct{}
}

func NewInteractiveResolver(in io.Reader, out io.Writer) *InteractiveResolver {
	if out == nil {
		out = io.Discard
	}
	return &InteractiveResolver{in: in, out: out, lines: make(chan string)}
}

// readLines feeds lines until EOF or a read error, then closes the channel.
func (r *InteractiveResolver) readLines() {
	sc := bufio.NewScanner(r.in)
	sc.Buffer(make([]byte, 0, 64*1024), maxAnswerLine)
	for sc.Scan() {
		r.lines <- sc.Text()
	}
	close(r.lines)
}

func (r *InteractiveResolver) Resolve(ctx context.Context, question string, qc QuestionContext) (string, error) {
	r.once.Do(func() { go r.readLines() })
	fmt.Fprintf(r.out, "? %s\n", question)

	intr := make(chan struct{})
	r.mu.Lock()
	r.pending = intr
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
	}()

	select {
	case line, ok := <-r.lines:
		if !ok {
			fmt.Fprintln(r.out, "\n[Input ended, continuing without clarifying answers]")
			return "", nil
		}
		return strings.TrimSpace(line), nil
	case <-intr:
		fmt.Fprintln(r.out, "\n[Interrupted, continuing without an answer]")
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Interrupt abandons the question currently waiting for input. It reports
// false when no question is pending.
func (r *InteractiveResolver) Interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return false
	}
	close(r.pending)
	r.pending = nil
	return true
}
