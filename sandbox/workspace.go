package sandbox

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/isdmx/judgebox/model"
)

// maxStageAttempts bounds the search for an unused staged input name.
const maxStageAttempts = 8

// workspace maps a host directory onto a fixed path inside a sandbox and
// stages submission files and case inputs beneath it.
type workspace struct {
	fs          FileSystem
	hostRoot    string // host directory backing sandboxRoot
	sandboxRoot string // the same directory as seen by sandboxed commands
}

func newWorkspace(fs FileSystem, hostRoot, sandboxRoot string) (*workspace, error) {
	for _, dir := range []string{submissionDir, inputDir} {
		if err := fs.MkdirAll(filepath.Join(hostRoot, dir), DirPermission); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &workspace{fs: fs, hostRoot: hostRoot, sandboxRoot: sandboxRoot}, nil
}

// unpack writes files into a fresh directory so repeated calls never
// overwrite each other.
func (w *workspace) unpack(files []model.SubmissionFile) (string, error) {
	hostDir, err := w.fs.MkdirTemp(filepath.Join(w.hostRoot, submissionDir), "unpack-")
	if err != nil {
		return "", fmt.Errorf("failed to create unpack directory: %w", err)
	}

	for _, f := range files {
		target, err := safeJoin(hostDir, f.Filename)
		if err != nil {
			return "", err
		}
		if err := w.fs.MkdirAll(filepath.Dir(target), DirPermission); err != nil {
			return "", fmt.Errorf("failed to create parent directories: %w", err)
		}
		if err := w.fs.WriteFile(target, f.Contents, FilePermission); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.Filename, err)
		}
	}

	return path.Join(w.sandboxRoot, submissionDir, filepath.Base(hostDir)), nil
}

func (w *workspace) unpackInput(input []byte) (string, error) {
	for range maxStageAttempts {
		name := "case-" + uuid.NewString() + ".in"
		hostPath := filepath.Join(w.hostRoot, inputDir, name)

		exists, err := w.fs.FileExists(hostPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat staged input: %w", err)
		}
		if exists {
			continue
		}
		if err := w.fs.WriteFile(hostPath, input, FilePermission); err != nil {
			return "", fmt.Errorf("failed to write staged input: %w", err)
		}
		return path.Join(w.sandboxRoot, inputDir, name), nil
	}
	return "", fmt.Errorf("failed to find an unused input name after %d attempts", maxStageAttempts)
}

// safeJoin resolves name beneath dir, rejecting absolute names and names
// that escape dir.
func safeJoin(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute path not allowed: %s", name)
	}

	cleanName := filepath.Clean(name)
	if cleanName == "." || cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe relative path: %s", name)
	}

	target := filepath.Join(dir, cleanName)
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path: %s", name)
	}
	return target, nil
}
