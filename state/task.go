package state

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/warden/command"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/util/frontmatter"
)

// taskReadme is read when a task reference points at a directory.
const taskReadme = "README.md"

// LoadTask reads the header block of the task document fileRef, resolved
// against tasksDir when relative, and returns the task it describes.
func LoadTask(tasksDir, fileRef string) (TaskState, error) {
	path := fileRef
	if !filepath.IsAbs(path) {
		path = filepath.Join(tasksDir, fileRef)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TaskState{}, errors.TaskNotFound(path)
		}
		return TaskState{}, errors.Wrap(err, errors.ErrCodeTaskNotFound, "stat task file").
			WithDetail("path", path)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if info.IsDir() {
		stem = filepath.Base(path)
		path = filepath.Join(path, taskReadme)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TaskState{}, errors.TaskNotFound(path)
		}
		return TaskState{}, errors.Wrap(err, errors.ErrCodeTaskNotFound, "open task file").
			WithDetail("path", path)
	}
	defer f.Close()

	header, err := frontmatter.ParseHeader(f)
	switch {
	case stderrors.Is(err, frontmatter.ErrNoHeader):
		return TaskState{}, errors.TaskHeaderMissing(path)
	case stderrors.Is(err, frontmatter.ErrUnterminated):
		return TaskState{}, errors.TaskHeaderUnterminated(path)
	case err != nil:
		return TaskState{}, errors.Wrap(err, errors.ErrCodeTaskHeaderMissing, "read task header").
			WithDetail("path", path)
	}

	name := header.Get("name")
	if name == "" {
		name = header.Get("task")
	}
	if name == "" {
		name = stem
	}

	branch := header.Get("branch")
	if branch != "" {
		if err := command.ValidateGitRef(branch); err != nil {
			return TaskState{}, errors.InvalidInput(fmt.Sprintf("task %s: %v", path, err))
		}
	}

	status := header.Get("status")
	if status == "" {
		status = "pending"
	}

	submodules := header.List("submodules")
	if submodules == nil {
		submodules = []string{}
	}

	return TaskState{
		Name:       name,
		File:       filepath.ToSlash(filepath.Clean(fileRef)),
		Branch:     branch,
		Status:     status,
		Submodules: submodules,
	}, nil
}
