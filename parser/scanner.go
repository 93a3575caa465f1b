// Package parser pulls item fields out of the JSON blob embedded in a detail page.
package parser

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrUnterminated is returned when a field marker is found but its terminator is not.
	ErrUnterminated = errors.New("field value is not terminated")
	// ErrMalformedList is returned when a list field slice is not valid JSON.
	ErrMalformedList = errors.New("malformed list value")
)

// Scanner locates markers and slices values out of a raw page payload.
type Scanner interface {
	// FindMarker returns the offset just past the first marker at or after from.
	FindMarker(marker string, from int) (int, bool)
	// ReadUntil returns the text between start and the earliest of terminators.
	ReadUntil(start int, terminators ...string) (string, error)
	// ReadString returns the text between start and the first unescaped double quote.
	ReadString(start int) (string, error)
	// Decode resolves HTML character references.
	Decode(s string) string
}

type textScanner struct {
	payload string
}

// NewScanner returns a Scanner over payload.
func NewScanner(payload []byte) Scanner {
	return &textScanner{payload: string(payload)}
}

func (s *textScanner) FindMarker(marker string, from int) (int, bool) {
	if marker == "" || from < 0 || from > len(s.payload) {
		return 0, false
	}
	idx := strings.Index(s.payload[from:], marker)
	if idx < 0 {
		return 0, false
	}
	return from + idx + len(marker), true
}

func (s *textScanner) ReadUntil(start int, terminators ...string) (string, error) {
	if start < 0 || start > len(s.payload) {
		return "", ErrUnterminated
	}
	rest := s.payload[start:]
	end := -1
	for _, term := range terminators {
		if term == "" {
			continue
		}
		if idx := strings.Index(rest, term); idx >= 0 && (end < 0 || idx < end) {
			end = idx
		}
	}
	if end < 0 {
		return "", ErrUnterminated
	}
	return rest[:end], nil
}

func (s *textScanner) ReadString(start int) (string, error) {
	if start < 0 || start > len(s.payload) {
		return "", ErrUnterminated
	}
	rest := s.payload[start:]
	escaped := false
	for i := 0; i < len(rest); i++ {
		switch {
		case escaped:
			escaped = false
		case rest[i] == '\\':
			escaped = true
		case rest[i] == '"':
			return rest[:i], nil
		}
	}
	return "", ErrUnterminated
}

func (s *textScanner) Decode(text string) string {
	return html.UnescapeString(text)
}
