package flatfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Dialect is the inferred shape of a flatfile: its delimiter and header.
// Whitespace marks the "one or more spaces/tabs" delimiter, which has no
// single delimiter rune.
type Dialect struct {
	Delimiter  rune
	Whitespace bool
	Header     []string
}

// SniffDialect infers the delimiter by probing only the header line under
// the three accepted candidates: comma, semicolon, then whitespace. Comma
// wins if it yields more than one column and at least as many as semicolon;
// else semicolon wins if it yields more than one column; else whitespace wins
// if it strictly beats both. A single-column file is never accepted: it is
// ambiguous with "no structure". The stream position is restored to the
// start afterwards so the main parse sees the full content.
func SniffDialect(r io.ReadSeeker) (Dialect, error) {
	line, err := headerLine(r)
	if err != nil {
		return Dialect{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Dialect{}, fmt.Errorf("rewind flatfile: %w", err)
	}

	comma := probeDelimiter(line, ',')
	semicolon := probeDelimiter(line, ';')
	whitespace := splitWhitespace(line)

	switch {
	case len(comma) > 1 && len(comma) >= len(semicolon):
		return Dialect{Delimiter: ',', Header: comma}, nil
	case len(semicolon) > 1:
		return Dialect{Delimiter: ';', Header: semicolon}, nil
	case len(whitespace) > len(comma) && len(whitespace) > len(semicolon):
		return Dialect{Whitespace: true, Header: whitespace}, nil
	default:
		return Dialect{}, &DialectError{Msg: "header yields a single column under every delimiter"}
	}
}

// headerLine returns the first non-empty, non-comment line, with any UTF-8
// byte-order mark removed.
func headerLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return line, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read flatfile header: %w", err)
	}
	return "", &DialectError{Msg: "no header line found"}
}

// probeDelimiter is one cheap zero-row parse: the header line alone through
// the CSV engine with the candidate delimiter.
func probeDelimiter(line string, delim rune) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = delim
	cr.TrimLeadingSpace = true
	fields, err := cr.Read()
	if err != nil {
		// A header that is not parseable under one candidate just loses
		// that probe; it may still win under another delimiter.
		return nil
	}
	return fields
}

func splitWhitespace(line string) []string {
	return strings.Fields(line)
}
