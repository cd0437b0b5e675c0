// Package scanner finds the Python files below a directory.
// It skips hidden and well-known build directories and respects
// .autoforgeignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Slash separated path relative to the scan root
	FullPath string // Root joined with Path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .autoforgeignore)
	Extensions      []string // File extensions to collect (default: .py)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".autoforgeignore",
		Extensions:     []string{".py"},
		DefaultExcludes: []string{
			"__pycache__",
			".git",
			".hg",
			".svn",
			".venv",
			"venv",
			".tox",
			".nox",
			".mypy_cache",
			".pytest_cache",
			"node_modules",
			"site-packages",
			"build",
			"dist",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// ignoreFile holds the patterns of one ignore file. Patterns match paths
// relative to base, the slash separated directory holding the file.
type ignoreFile struct {
	base     string
	patterns []IgnorePattern
}

// Scan walks root and returns the matching files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	var (
		files   []FileInfo
		ignores []ignoreFile
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if rel != "." {
			if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
				return skip(d)
			}
			if d.IsDir() && s.isDefaultExcluded(d.Name()) {
				return filepath.SkipDir
			}
			if ignored(rel, d.IsDir(), ignores) {
				return skip(d)
			}
		}

		if d.IsDir() {
			base := rel
			if base == "." {
				base = ""
			}
			patterns, err := s.loadIgnorePatterns(path)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			if len(patterns) > 0 {
				ignores = append(ignores, ignoreFile{base: base, patterns: patterns})
			}
			return nil
		}

		if !d.Type().IsRegular() || !s.wanted(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:     rel,
			FullPath: filepath.Join(root, filepath.FromSlash(rel)),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func skip(d fs.DirEntry) error {
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

// isDefaultExcluded checks if the name matches default exclusion patterns.
func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func (s *Scanner) wanted(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range s.opts.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns loads the ignore file in dir, if there is one.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// ignored applies gitignore semantics: files are consulted from the root
// down and the last matching pattern wins, so a negation re-includes a path.
func ignored(rel string, isDir bool, ignores []ignoreFile) bool {
	result := false
	for _, f := range ignores {
		sub := rel
		if f.base != "" {
			if !strings.HasPrefix(rel, f.base+"/") {
				continue
			}
			sub = rel[len(f.base)+1:]
		}
		for _, p := range f.patterns {
			if p.Match(sub, isDir) {
				result = !p.IsNegation()
			}
		}
	}
	return result
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// Expand replaces every directory in paths with the files found below it,
// keeping other paths as given. The result holds no duplicates.
func Expand(paths []string, opts Options) ([]string, error) {
	s := New(opts)
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if key := filepath.Clean(p); !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			add(p)
			continue
		}
		files, err := s.Scan(p)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		for _, f := range files {
			add(f.FullPath)
		}
	}
	return out, nil
}
