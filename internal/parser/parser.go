package parser

import (
	"io"
	"path/filepath"
	"strings"
)

// Parser extracts plain text from raw document bytes.
type Parser interface {
	Parse(r io.Reader, filename string) (string, error)
}

// SkipExtensions lists binary and bytecode files that are never indexed.
var SkipExtensions = map[string]bool{
	".pyc":   true,
	".pyo":   true,
	".pyd":   true,
	".class": true,
	".jar":   true,
	".zip":   true,
	".tar":   true,
	".gz":    true,
}

// SkipDirs lists dependency and VCS directory names excluded anywhere in a path.
var SkipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	".git":         true,
	"env":          true,
	"venv":         true,
}

// Options tunes extraction.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the parser for a filename. Anything without a dedicated
// parser is read as UTF-8 text.
func ForFile(filename string, opts Options) Parser {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}
	case ".docx":
		return &DOCXParser{}
	case ".html", ".htm":
		return &HTMLParser{}
	default:
		return &TextParser{}
	}
}

// ShouldIndex reports whether a path relative to the knowledge folder is
// eligible for indexing: no hidden file, no skipped extension, and no
// skipped directory component.
func ShouldIndex(rel string) bool {
	name := filepath.Base(rel)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if SkipExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if SkipDirs[part] {
			return false
		}
	}
	return true
}

// SkipDir reports whether a directory should not be descended into.
func SkipDir(name string) bool {
	return SkipDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}
