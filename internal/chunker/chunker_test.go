package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(words, " ")
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t"} {
		if chunks := Split(in, DefaultConfig()); len(chunks) != 0 {
			t.Errorf("Split(%q): expected 0 chunks, got %d", in, len(chunks))
		}
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("  Hello world.  ", DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "Hello world." {
		t.Errorf("expected trimmed text, got %q", chunks[0])
	}
}

func TestSplit_RespectsMaxSize(t *testing.T) {
	cfg := Config{ChunkSize: 50, ChunkOverlap: 10}
	chunks := Split(numberedWords(200), cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > cfg.ChunkSize {
			t.Errorf("chunk %d: %d chars exceeds max %d", i, n, cfg.ChunkSize)
		}
	}
}

func TestSplit_OverlapBetweenNeighbours(t *testing.T) {
	cfg := Config{ChunkSize: 50, ChunkOverlap: 10}
	chunks := Split(numberedWords(200), cfg)

	for i := 0; i+1 < len(chunks); i++ {
		prev, next := chunks[i], chunks[i+1]
		first := strings.Fields(next)[0]
		at := strings.Index(prev, first)
		if at < 0 {
			t.Fatalf("chunk %d does not start inside chunk %d: %q / %q", i+1, i, next, prev)
		}
		tail := prev[at:]
		if !strings.HasPrefix(next, tail) {
			t.Errorf("chunk %d head %q does not repeat tail %q of chunk %d", i+1, next, tail, i)
		}
		if utf8.RuneCountInString(tail) > cfg.ChunkOverlap {
			t.Errorf("overlap %q longer than %d", tail, cfg.ChunkOverlap)
		}
	}
}

func TestSplit_CoversAllWords(t *testing.T) {
	text := numberedWords(120)
	chunks := Split(text, Config{ChunkSize: 60, ChunkOverlap: 12})
	seen := map[string]bool{}
	for _, c := range chunks {
		for _, w := range strings.Fields(c) {
			seen[w] = true
		}
	}
	for _, w := range strings.Fields(text) {
		if !seen[w] {
			t.Errorf("word %q lost during chunking", w)
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	p1 := strings.Repeat("a", 30)
	p2 := strings.Repeat("b", 30)
	p3 := strings.Repeat("c", 30)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := Split(text, Config{ChunkSize: 70, ChunkOverlap: 40})
	want := []string{p1 + "\n\n" + p2, p2 + "\n\n" + p3}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplit_NoOverlapWhenParagraphExceedsWindow(t *testing.T) {
	p1 := strings.Repeat("a", 30)
	p2 := strings.Repeat("b", 30)
	p3 := strings.Repeat("c", 30)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := Split(text, Config{ChunkSize: 70, ChunkOverlap: 10})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[1] != p3 {
		t.Errorf("expected second chunk %q, got %q", p3, chunks[1])
	}
}

func TestSplit_FallsBackToLinesThenCharacters(t *testing.T) {
	// One oversized paragraph made of lines, one unbroken run of characters.
	lines := strings.Repeat("line of text here\n", 10)
	run := strings.Repeat("x", 95)
	chunks := Split(lines+"\n"+run, Config{ChunkSize: 40, ChunkOverlap: 5})

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 40 {
			t.Errorf("chunk %d: %d chars exceeds max", i, n)
		}
	}
	var xs int
	for _, c := range chunks {
		if strings.Trim(c, "x") == "" {
			xs++
		}
	}
	if xs < 3 {
		t.Errorf("expected the unbroken run to be cut into at least 3 chunks, got %d", xs)
	}
}

func TestSplit_MultiByteRunes(t *testing.T) {
	text := strings.Repeat("日本語のテキスト ", 40)
	cfg := Config{ChunkSize: 30, ChunkOverlap: 5}
	for i, c := range Split(text, cfg) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c); n > cfg.ChunkSize {
			t.Errorf("chunk %d: %d runes exceeds max", i, n)
		}
	}
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		in   Config
		want Config
	}{
		{Config{}, Config{ChunkSize: 800, ChunkOverlap: 0}},
		{Config{ChunkSize: 100, ChunkOverlap: -3}, Config{ChunkSize: 100, ChunkOverlap: 0}},
		{Config{ChunkSize: 100, ChunkOverlap: 100}, Config{ChunkSize: 100, ChunkOverlap: 20}},
		{Config{ChunkSize: 100, ChunkOverlap: 30}, Config{ChunkSize: 100, ChunkOverlap: 30}},
	}
	for _, tt := range tests {
		if got := tt.in.normalize(); got != tt.want {
			t.Errorf("normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
	if got := EstimateTokens("one"); got != 1 {
		t.Errorf("expected 1 token for one word, got %d", got)
	}
	if got := EstimateTokens(strings.Repeat("word ", 300)); got != 399 {
		t.Errorf("expected 399 tokens, got %d", got)
	}
}
