package internal_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectRoot walks up from the working directory to the directory holding
// go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (no go.mod found in any parent directory)")
		}
		dir = parent
	}
}

func readFileContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	return string(data)
}

func TestInternalSubpackages_HaveSource(t *testing.T) {
	t.Parallel()

	root := projectRoot(t)
	packages := []string{
		"agent", "buildinfo", "cli", "config", "logging", "loop",
		"relay", "render", "sentinel", "stats", "stream", "tui",
	}

	for _, name := range packages {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			matches, err := filepath.Glob(filepath.Join(root, "internal", name, "*.go"))
			require.NoError(t, err)

			found := false
			for _, m := range matches {
				if strings.HasSuffix(m, "_test.go") {
					continue
				}
				if strings.Contains(readFileContent(t, m), "package "+name+"\n") {
					found = true
					break
				}
			}
			assert.True(t, found, "internal/%s has no non-test source declaring package %s", name, name)
		})
	}
}

func TestGoMod_ModuleAndDirective(t *testing.T) {
	t.Parallel()

	content := readFileContent(t, filepath.Join(projectRoot(t), "go.mod"))
	assert.Contains(t, content, "module github.com/AbdelazizMoustafa10m/drover\n")
	assert.Contains(t, content, "\ngo 1.24")
}

func TestGoMod_NoReplaceDirectives(t *testing.T) {
	t.Parallel()

	content := readFileContent(t, filepath.Join(projectRoot(t), "go.mod"))
	for _, line := range strings.Split(content, "\n") {
		assert.False(t, strings.HasPrefix(strings.TrimSpace(line), "replace"),
			"go.mod must not contain replace directives: %q", line)
	}
}

func TestMainGo_Exists(t *testing.T) {
	t.Parallel()

	content := readFileContent(t, filepath.Join(projectRoot(t), "cmd", "drover", "main.go"))
	assert.Contains(t, content, "package main")
	assert.Contains(t, content, "func main()")
}
