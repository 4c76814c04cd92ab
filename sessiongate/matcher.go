package sessiongate

import (
	"path"
	"strings"
)

// Matcher decides which requests the gate runs on.
// Every path is included unless an exclusion rule matches.
type Matcher struct {
	prefixes   []string
	extensions []string
}

// DefaultMatcher excludes framework static assets, the favicon and image files
func DefaultMatcher() *Matcher {
	return NewMatcher(
		[]string{"/_next/static", "/_next/image", "/static/", "/favicon.ico"},
		[]string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp"},
	)
}

// NewMatcher builds a matcher from exclusion prefixes and file extensions.
// Extensions may be given with or without the leading dot.
func NewMatcher(prefixes, extensions []string) *Matcher {
	m := &Matcher{
		prefixes:   make([]string, 0, len(prefixes)),
		extensions: make([]string, 0, len(extensions)),
	}
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		m.prefixes = append(m.prefixes, p)
	}
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.extensions = append(m.extensions, ext)
	}
	return m
}

// Matches reports whether the gate should run for the given path
func (m *Matcher) Matches(p string) bool {
	if m == nil {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}
	if ext := path.Ext(p); ext != "" {
		for _, excluded := range m.extensions {
			if ext == excluded {
				return false
			}
		}
	}
	return true
}

// Prefixes returns a copy of the excluded prefixes
func (m *Matcher) Prefixes() []string {
	return append([]string(nil), m.prefixes...)
}

// Extensions returns a copy of the excluded extensions
func (m *Matcher) Extensions() []string {
	return append([]string(nil), m.extensions...)
}
