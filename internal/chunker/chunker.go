package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior. Sizes are measured in characters (runes).
type Config struct {
	ChunkSize    int // Maximum chunk size.
	ChunkOverlap int // Overlap between consecutive chunks of the same document.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    800,
		ChunkOverlap: 150,
	}
}

// Separators are tried in order: paragraph, line, word, then raw characters.
var Separators = []string{"\n\n", "\n", " ", ""}

func (c Config) normalize() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	return c
}

// Split breaks text into chunks of at most cfg.ChunkSize characters. Each
// chunk after the first repeats the tail of its predecessor, up to
// cfg.ChunkOverlap characters, snapped to the separator in use.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalize()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s := splitter{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	return s.split(text, Separators)
}

type splitter struct {
	size    int
	overlap int
}

// split recursively descends through separators until every piece fits.
func (s splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final []string
	var good []string
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge packs small pieces into chunks, carrying trailing pieces forward as overlap.
func (s splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs []string
	var current []string
	total := 0

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		l := runeLen(p)
		if joinedLen(l) > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			// Drop leading pieces until only the overlap window remains
			// and the next piece fits.
			for total > s.overlap || (joinedLen(l) > s.size && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, separator) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
