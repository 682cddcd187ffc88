// Package stopwords loads excluded-word lists from user-supplied text
// files. The pipeline consumes the output as the request's
// excluded_words field.
package stopwords

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Parse splits the input on newlines, commas, semicolons, and any
// whitespace, trims each token, drops empties, and deduplicates
// preserving first occurrence.
func Parse(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stop words: %w", err)
	}

	fields := strings.FieldsFunc(string(raw), func(c rune) bool {
		switch c {
		case '\n', '\r', ',', ';', ' ', '\t':
			return true
		}
		return false
	})

	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimSpace(f)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words, nil
}

// LoadFile parses a stop-word file from disk.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stop-word file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
