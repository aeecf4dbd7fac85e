// Package frontmatter parses the `---` delimited key: value header block
// that opens task documents.
package frontmatter

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
)

const delimiter = "---"

var (
	// ErrNoHeader is returned when the document does not open with a delimiter line.
	ErrNoHeader = errors.New("document has no header block")
	// ErrUnterminated is returned when the closing delimiter is missing.
	ErrUnterminated = errors.New("header block is not terminated")
)

// Header holds the key: value pairs of a header block. Keys are lower-cased.
type Header map[string]string

// Get returns the trimmed value for key, or "" when absent.
func (h Header) Get(key string) string {
	return h[strings.ToLower(key)]
}

// List splits a comma-separated value into trimmed, de-duplicated, sorted entries.
// Surrounding brackets are tolerated, so both "a, b" and "[a, b]" parse.
func (h Header) List(key string) []string {
	raw := strings.TrimSpace(h.Get(key))
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.Trim(strings.TrimSpace(part), `"'`)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ParseHeader reads the header block at the top of r. Leading blank lines
// are skipped; any other content before the opening delimiter is ErrNoHeader.
// Reading stops at the closing delimiter.
func ParseHeader(r io.Reader) (Header, error) {
	scanner := bufio.NewScanner(r)
	header := make(Header)

	opened := false
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())

		if !opened {
			if trimmed == "" {
				continue
			}
			if trimmed != delimiter {
				return nil, ErrNoHeader
			}
			opened = true
			continue
		}

		if trimmed == delimiter {
			return header, nil
		}

		// Simple key: value parsing
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		header[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !opened {
		return nil, ErrNoHeader
	}
	return nil, ErrUnterminated
}
