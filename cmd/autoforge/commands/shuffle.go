package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reschivon/autoforge/internal/config"
	"github.com/reschivon/autoforge/internal/log"
	"github.com/reschivon/autoforge/internal/scanner"
	"github.com/reschivon/autoforge/pkg/cache"
	"github.com/reschivon/autoforge/pkg/forge"
)

// shuffleCmd represents the shuffle command
var shuffleCmd = &cobra.Command{
	Use:   "shuffle <path>...",
	Short: "Reorder independent statements in Python functions",
	Long: `Rewrites every function of the given Python files with the statements of
each basic block in a random order that respects all data dependencies.

The same seed and input always give the same output. Functions using
constructs that cannot be analyzed (try, with, match, ...) are left unchanged
and reported, unless --strict is set.

Directories are searched for Python files, skipping hidden and build
directories and anything matched by a .autoforgeignore file.

Without --out the result is printed to stdout. With --out each file is written
into the given directory under its relative path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("strip-comments") {
			cfg.StripComments, _ = cmd.Flags().GetBool("strip-comments")
		}
		if cmd.Flags().Changed("strict") {
			cfg.Strict, _ = cmd.Flags().GetBool("strict")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers, _ = cmd.Flags().GetInt("workers")
			if cfg.Workers <= 0 {
				return fmt.Errorf("--workers must be positive")
			}
		}
		if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
			cfg.CacheSize = 0
		}

		noShuffle, _ := cmd.Flags().GetBool("no-shuffle")
		outDir, _ := cmd.Flags().GetString("out")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		paths, err := scanner.Expand(args, scanner.DefaultOptions())
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no Python files found in %s", strings.Join(args, ", "))
		}

		reports, err := shuffleFiles(paths, cfg, noShuffle)
		if err != nil {
			return err
		}

		if outDir != "" {
			for _, r := range reports {
				if err := writeOutput(outDir, r); err != nil {
					return err
				}
			}
		}

		if jsonOutput {
			data, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if outDir == "" {
			printSources(cmd.OutOrStdout(), reports)
		}
		printSkipped(cmd.ErrOrStderr(), reports)
		return nil
	},
}

// fileReport is the outcome of shuffling one file.
type fileReport struct {
	File      string                 `json:"file"`
	Output    string                 `json:"output,omitempty"`
	Cached    bool                   `json:"cached"`
	Source    string                 `json:"source"`
	Functions []forge.FunctionResult `json:"functions"`
}

// shuffleFiles mutates every file concurrently, bounded by cfg.Workers.
// Results are looked up in and stored to the result cache.
func shuffleFiles(paths []string, cfg *config.Config, noShuffle bool) ([]*fileReport, error) {
	logger := cfg.Logger()

	var results *cache.ResultCache
	if cfg.CacheSize > 0 {
		rc, err := cache.OpenResults(cfg.CacheDir, cfg.CacheSize)
		if err != nil {
			logger.Warn("result cache unavailable", "dir", cfg.CacheDir, "error", err)
		} else {
			results = rc
		}
	}

	reports := make([]*fileReport, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			src, err := readPythonFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			opts := forge.Options{
				Seed:          cfg.Seed,
				StripComments: cfg.StripComments,
				MaxDepth:      cfg.MaxDepth,
				Only:          cfg.Only,
				NoShuffle:     noShuffle,
				Strict:        cfg.Strict,
				Logger:        logger,
			}
			r, err := shuffleOne(path, src, opts, results, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = r
			return nil
		})
	}
	err := g.Wait()

	if results != nil {
		if ferr := results.Flush(); ferr != nil {
			logger.Warn("saving result cache", "error", ferr)
		}
		st := results.Stats()
		logger.Debug("result cache", "entries", st.Length, "bytes", st.Bytes, "hits", st.HitCount, "misses", st.MissCount)
	}
	return reports, err
}

func shuffleOne(path string, src []byte, opts forge.Options, results *cache.ResultCache, logger log.Logger) (*fileReport, error) {
	report := &fileReport{File: path}

	// Strict runs are not cached: a cached result cannot reproduce the error.
	var key string
	if results != nil && !opts.Strict {
		key = cache.Key(src, []byte(opts.Fingerprint()))
		res, err := results.Lookup(key)
		if err == nil {
			report.Cached = true
			report.Source = res.Source
			report.Functions = res.Functions
			logger.Debug("cache hit", "file", path, "key", key)
			return report, nil
		}
		if !errors.Is(err, cache.ErrKeyNotFound) {
			logger.Warn("ignoring cached result", "file", path, "error", err)
		}
	}

	res, err := forge.Mutate(src, opts)
	if err != nil {
		return nil, err
	}
	report.Source = res.Source
	report.Functions = res.Functions
	logger.Info("shuffled file", "file", path, "mutated", res.Mutated(), "functions", len(res.Functions))

	if key != "" {
		if err := results.Store(key, res); err != nil {
			logger.Warn("caching result", "file", path, "error", err)
		}
	}
	return report, nil
}

// writeOutput writes the report's source below outDir. Relative input paths
// keep their directories; other paths use the base name.
func writeOutput(outDir string, r *fileReport) error {
	rel := r.File
	if !filepath.IsLocal(rel) {
		rel = filepath.Base(rel)
	}
	dest := filepath.Join(outDir, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(dest, []byte(r.Source), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	r.Output = dest
	return nil
}

func printSources(w io.Writer, reports []*fileReport) {
	for i, r := range reports {
		if len(reports) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# === %s ===\n", r.File)
		}
		fmt.Fprint(w, r.Source)
	}
}

func printSkipped(w io.Writer, reports []*fileReport) {
	for _, r := range reports {
		for _, f := range r.Functions {
			if f.Mutated || f.Reason == forge.ReasonNotSelected {
				continue
			}
			fmt.Fprintf(w, "%s:%d: %s left unchanged: %s\n", r.File, f.Line, f.Name, f.Reason)
		}
	}
}

func init() {
	shuffleCmd.Flags().Uint64("seed", 0, "Shuffle seed (default from config)")
	shuffleCmd.Flags().String("only", "", "Comma separated function names to shuffle")
	shuffleCmd.Flags().Bool("strip-comments", false, "Drop comments and docstrings from rewritten functions")
	shuffleCmd.Flags().Bool("no-shuffle", false, "Keep statement order; only rebuild the functions")
	shuffleCmd.Flags().Bool("strict", false, "Fail when a function cannot be shuffled")
	shuffleCmd.Flags().Bool("no-cache", false, "Do not read or write the result cache")
	shuffleCmd.Flags().Int("workers", 0, "Number of files processed concurrently (default from config)")
	shuffleCmd.Flags().Int("max-depth", 0, "Maximum statement nesting (default from config)")
	shuffleCmd.Flags().StringP("out", "w", "", "Write results into this directory instead of stdout")
	shuffleCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
