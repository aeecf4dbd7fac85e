// Package transcript turns host conversation transcripts into text that fits
// the context of a delegated sub-agent.
package transcript

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// Chunks splits text into pieces of at most maxBytes bytes. Each cut falls
// after the last newline in the window, else after the last space, else at
// the last whole character. Concatenating the chunks yields text.
//
// A character longer than maxBytes is emitted as a chunk of its own.
// Invalid UTF-8 bytes count as one-byte characters.
func Chunks(text string, maxBytes int) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for len(rest) > 0 {
			n := cutPoint(rest, maxBytes)
			if !yield(rest[:n]) {
				return
			}
			rest = rest[n:]
		}
	}
}

// cutPoint returns the length of the next chunk of s. It is always positive
// for a non-empty s.
func cutPoint(s string, maxBytes int) int {
	if len(s) <= maxBytes {
		return len(s)
	}

	cut := 0
	for cut < len(s) {
		_, size := utf8.DecodeRuneInString(s[cut:])
		if cut+size > maxBytes {
			break
		}
		cut += size
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	window := s[:cut]

	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		return i + 1
	}
	return cut
}
