package scanner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
	return tmpDir
}

func paths(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestScannerScan(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"main.py":                   "print('hi')",
		"pkg/helper.py":             "x = 1",
		"pkg/README.md":             "# Test",
		"pkg/__pycache__/helper.py": "stale",
		".hidden/secret.py":         "hidden",
		".venv/lib/site.py":         "venv",
		"build/lib/main.py":         "built",
		"scripts/run.PY":            "upper case extension",
	})

	results, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"main.py", "pkg/helper.py", "scripts/run.PY"}
	if got := paths(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	for _, f := range results {
		if f.FullPath != filepath.Join(tmpDir, filepath.FromSlash(f.Path)) {
			t.Errorf("FullPath = %s, want it under %s", f.FullPath, tmpDir)
		}
		if f.Size == 0 {
			t.Errorf("%s has zero size", f.Path)
		}
	}
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		".autoforgeignore":          "# generated code\ngen/\n*_pb2.py\n!keep_pb2.py\n/top.py\n",
		"top.py":                    "x = 1",
		"app.py":                    "x = 1",
		"gen/models.py":             "x = 1",
		"api/service_pb2.py":        "x = 1",
		"api/keep_pb2.py":           "x = 1",
		"nested/top.py":             "x = 1",
		"nested/.autoforgeignore":   "local.py\n",
		"nested/local.py":           "x = 1",
		"other/local.py":            "x = 1",
		"docs/gen.py":               "a file named like an ignored directory",
		"deep/a/b/c/generated/x.py": "x = 1",
	})

	results, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		"api/keep_pb2.py",
		"app.py",
		"deep/a/b/c/generated/x.py",
		"docs/gen.py",
		"nested/top.py",
		"other/local.py",
	}
	if got := paths(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestIgnorePatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"*.py", "a.py", false, true},
		{"*.py", "dir/a.py", false, true},
		{"*.py", "a.pyc", false, false},
		{"gen/", "gen", true, true},
		{"gen/", "gen", false, false},
		{"gen/", "src/gen", true, true},
		{"/top.py", "top.py", false, true},
		{"/top.py", "sub/top.py", false, false},
		{"src/*.py", "src/a.py", false, true},
		{"src/*.py", "lib/src/a.py", false, false},
		{"**/fixtures", "a/b/fixtures", true, true},
		{"docs/**/*.py", "docs/a/b/c.py", false, true},
		{"docs/**/*.py", "docs/c.py", false, true},
		{"test_?.py", "test_1.py", false, true},
		{"test_[ab].py", "test_c.py", false, false},
		{"!keep.py", "keep.py", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p := ParseIgnorePattern(tt.pattern)
			if got := p.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("ParseIgnorePattern(%q).Match(%q, %v) = %v, want %v", tt.pattern, tt.path, tt.isDir, got, tt.want)
			}
			if p.String() != tt.pattern {
				t.Errorf("String() = %q, want %q", p.String(), tt.pattern)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"src/a.py":   "x = 1",
		"src/b/c.py": "x = 1",
		"single.py":  "x = 1",
	})

	single := filepath.Join(tmpDir, "single.py")
	src := filepath.Join(tmpDir, "src")
	missing := filepath.Join(tmpDir, "missing.py")

	got, err := Expand([]string{single, src, missing, filepath.Join(src, "a.py")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	want := []string{
		single,
		filepath.Join(src, "a.py"),
		filepath.Join(src, "b", "c.py"),
		missing,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}
