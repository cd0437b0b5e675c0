package scanner

import (
	"path"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern    string   // Original pattern
	isNegation bool     // Pattern starts with !
	dirOnly    bool     // Pattern ends with /
	anchored   bool     // Pattern starts with / or holds a / in the middle
	segments   []string // Slash separated glob segments, ** included
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		p.anchored = true
	}

	p.segments = strings.Split(pattern, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.pattern
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.isNegation
}

// Match reports whether rel, a slash separated path relative to the ignore
// file's directory, matches the pattern. Directory patterns only match
// directories; their contents are never visited.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}

	parts := strings.Split(rel, "/")
	if p.anchored {
		return matchSegments(p.segments, parts)
	}
	for i := range parts {
		if matchSegments(p.segments, parts[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments against path segments. A ** segment
// matches any number of path segments.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}

	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}

	if len(parts) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], parts[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
