package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/papergest/internal/doctree"
)

// Parser converts raw document bytes into a queryable tree.
type Parser interface {
	Parse(r io.Reader, filename string) (doctree.Node, error)
}

// Syntax is the markup language of a source file.
type Syntax int

const (
	SyntaxHTML Syntax = iota
	SyntaxXML
)

// ErrUnsupported is returned for files this service cannot parse.
var ErrUnsupported = errors.New("unsupported file extension")

// ParseError reports input that is not usable markup. It is fatal for the
// document it describes.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".html": true,
	".htm":  true,
	".xml":  true,
}

// SyntaxForFile picks the markup syntax from a filename's extension.
func SyntaxForFile(filename string) (Syntax, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return SyntaxHTML, nil
	case ".xml":
		return SyntaxXML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// ForSyntax returns the parser for a markup syntax.
func ForSyntax(s Syntax) Parser {
	if s == SyntaxXML {
		return &XMLParser{}
	}
	return &HTMLParser{}
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	s, err := SyntaxForFile(filename)
	if err != nil {
		return nil, err
	}
	return ForSyntax(s), nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
