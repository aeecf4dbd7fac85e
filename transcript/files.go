package transcript

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/warden/errors"
)

const chunkPattern = "current_transcript_*.txt"

// WriteChunks replaces the chunk files in dir with fresh chunks of text and
// returns their paths in order.
func WriteChunks(dir, text string, maxBytes int) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.TranscriptIO("create directory for", dir, err)
	}

	old, err := filepath.Glob(filepath.Join(dir, chunkPattern))
	if err != nil {
		return nil, errors.TranscriptIO("list", dir, err)
	}
	for _, path := range old {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.TranscriptIO("remove", path, err)
		}
	}

	var paths []string
	n := 0
	for chunk := range Chunks(text, maxBytes) {
		n++
		path := filepath.Join(dir, fmt.Sprintf("current_transcript_%03d.txt", n))
		if err := os.WriteFile(path, []byte(chunk), 0644); err != nil {
			return paths, errors.TranscriptIO("write", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
