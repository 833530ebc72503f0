package parser

import (
	"io"
	"strings"
)

// TextParser reads any file as UTF-8. Invalid byte sequences are dropped
// rather than reported.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
