package loop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoSteps is returned by LoadSteps when the pattern matches no files.
var ErrNoSteps = errors.New("no step files matched")

// StepFromFile reads a prompt file into a Step labelled with the file's base
// name without extension. An empty label falls back to that name.
func StepFromFile(path, label, model string) (Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Step{}, fmt.Errorf("reading prompt file %q: %w", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return Step{}, fmt.Errorf("prompt file %q is empty", path)
	}
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Step{Prompt: prompt, Label: label, Model: model}, nil
}

// LoadSteps expands a doublestar pattern (e.g. "prompts/**/*.md") and returns
// one Step per matched file, ordered by path.
func LoadSteps(pattern, model string) ([]Step, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding step pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSteps, pattern)
	}
	sort.Strings(matches)

	steps := make([]Step, 0, len(matches))
	for _, m := range matches {
		s, err := StepFromFile(m, "", model)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
