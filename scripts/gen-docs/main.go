// Command gen-docs writes drover's man pages and shell completion scripts
// for release archives.
//
// Usage:
//
//	go run ./scripts/gen-docs [output-dir]
//
// Man pages land in <output-dir>/man/man1 and completions in
// <output-dir>/completions. The default output directory is "dist".
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/AbdelazizMoustafa10m/drover/internal/cli"
)

func main() {
	outDir := "dist"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	if err := run(cli.RootCmd(), outDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(root *cobra.Command, outDir string) error {
	manDir := filepath.Join(outDir, "man", "man1")
	compDir := filepath.Join(outDir, "completions")
	for _, dir := range []string{manDir, compDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	header := &doc.GenManHeader{
		Title:   "DROVER",
		Section: "1",
		Source:  "drover",
		Manual:  "drover manual",
	}
	if err := doc.GenManTree(root, header, manDir); err != nil {
		return fmt.Errorf("generating man pages: %w", err)
	}
	fmt.Printf("man pages written to %s\n", manDir)

	completions := map[string]func(f *os.File) error{
		"drover.bash": func(f *os.File) error { return root.GenBashCompletionV2(f, true) },
		"_drover":     func(f *os.File) error { return root.GenZshCompletion(f) },
		"drover.fish": func(f *os.File) error { return root.GenFishCompletion(f, true) },
		"drover.ps1":  func(f *os.File) error { return root.GenPowerShellCompletionWithDesc(f) },
	}
	for name, generate := range completions {
		path := filepath.Join(compDir, name)
		if err := writeFile(path, generate); err != nil {
			return err
		}
		fmt.Printf("completion written to %s\n", path)
	}
	return nil
}

func writeFile(path string, generate func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := generate(f); err != nil {
		f.Close()
		return fmt.Errorf("generating %s: %w", path, err)
	}
	return f.Close()
}
