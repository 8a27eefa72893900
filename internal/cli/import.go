package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"picquest/internal/media"
	"picquest/internal/services"
)

var importPattern string

var importCmd = &cobra.Command{
	Use:   "import <path|glob>...",
	Short: "Upload local pictures through the full pipeline",
	Long: `Import runs every matching picture through the same pipeline as the upload API:
store, thumbnail, describe, embed and persist. Files are processed one at a time
in batches of upload.maxBatchFiles; a failing file is reported and skipped.

Examples:
  picquest import ./photos                     # every supported picture below ./photos
  picquest import ./photos --pattern "2024/**"  # only a sub tree
  picquest import "trip/**/*.{jpg,png}"        # a glob`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importPattern, "pattern", "**/*", "doublestar pattern applied inside directory arguments")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	paths, err := collectFiles(args, importPattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No supported pictures found.")
		return nil
	}

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Importing[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	var failed []services.BatchResult
	for _, chunk := range chunkPaths(paths, cfg.Upload.MaxBatchFiles) {
		a.svc.UploadBatch(cmd.Context(), batchEntries(chunk), func(i int, res services.BatchResult) {
			if res.Err != nil {
				failed = append(failed, res)
			}
			_ = bar.Add(1)
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d of %d pictures\n", len(paths)-len(failed), len(paths))
	for _, res := range failed {
		fmt.Fprintf(out, "  failed %s: %v\n", res.Filename, res.Err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d pictures failed to import", len(failed))
	}
	return nil
}

// collectFiles expands directories (filtered by pattern) and globs into a
// sorted, de-duplicated list of supported picture files.
func collectFiles(args []string, pattern string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] || !media.IsSupported(abs) {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(arg), pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pattern, err)
			}
			for _, m := range matches {
				add(filepath.Join(arg, filepath.FromSlash(m)))
			}
		case err == nil:
			add(arg)
		case errors.Is(err, fs.ErrNotExist):
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no such file or pattern: %s", arg)
			}
			for _, m := range matches {
				add(m)
			}
		default:
			return nil, err
		}
	}
	slices.Sort(out)
	return out, nil
}

func chunkPaths(paths []string, size int) [][]string {
	if size <= 0 {
		size = max(len(paths), 1)
	}
	var chunks [][]string
	for chunk := range slices.Chunk(paths, size) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func batchEntries(paths []string) []services.BatchEntry {
	entries := make([]services.BatchEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, services.BatchEntry{
			Filename: filepath.Base(p),
			Open:     func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}
	return entries
}
