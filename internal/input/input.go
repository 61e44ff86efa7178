// Package input parses and validates gene query lists. Invalid
// symbols are rejected here, before any collaborator call.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"genefetch/internal/core/domain"
)

var (
	// ErrEmptyInput is returned when a list contains no usable symbols.
	ErrEmptyInput = errors.New("no gene symbols in input")

	// ErrInvalidSymbol is wrapped into per-symbol validation errors.
	ErrInvalidSymbol = errors.New("invalid gene symbol")
)

// Symbols are alphanumeric with the separators HGNC-style names use.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]*$`)

const maxSymbolLength = 64

// ValidateSymbol rejects empty, oversized, or malformed symbols.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(symbol) > maxSymbolLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidSymbol, symbol, maxSymbolLength)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// Parse reads one symbol per line, skipping blanks and '#' comments.
// Lines with commas or tabs are treated as delimited rows and the
// first column is taken. Duplicates keep their first occurrence.
// Invalid symbols fail the whole parse.
func Parse(r io.Reader) ([]domain.GeneQuery, error) {
	scanner := bufio.NewScanner(r)

	var queries []domain.GeneQuery
	seen := make(map[string]bool)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		symbol := firstColumn(text)
		if err := ValidateSymbol(symbol); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		key := strings.ToLower(symbol)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, domain.GeneQuery{Symbol: symbol, Index: len(queries)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(queries) == 0 {
		return nil, ErrEmptyInput
	}
	return queries, nil
}

// ParseFile reads a gene list from disk.
func ParseFile(path string) ([]domain.GeneQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gene list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func firstColumn(line string) string {
	for _, sep := range []string{"\t", ","} {
		if i := strings.Index(line, sep); i >= 0 {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}
