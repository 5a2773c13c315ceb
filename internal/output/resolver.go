package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// ArchiveExt is the file extension of AIR archives.
const ArchiveExt = ".zip"

// Resolver computes a unique destination file path per exam from a
// user-supplied base path.
//
// The decision table, evaluated in order for exam index i (0-based):
//
//  1. Base path does not end in ".zip": treat it as a directory,
//     create it if absent, destination = dir/<accession>.zip
//     (or exam_<i+1>.zip when the accession is empty).
//  2. Base path ends in ".zip" and is neither on disk nor already
//     claimed this run: destination = base path itself.
//  3. Otherwise: destination = base with _<i+1> inserted before the
//     extension.
//
// A Resolver tracks every path it hands out, so within one run it never
// returns the same path twice even though files are only created once
// streaming begins. Paths can therefore be resolved for all exams up
// front, before any file exists.
type Resolver struct {
	base    string
	claimed map[string]bool
}

// NewResolver creates a Resolver for the given base path or directory.
func NewResolver(base string) *Resolver {
	return &Resolver{
		base:    base,
		claimed: make(map[string]bool),
	}
}

// Resolve returns the destination path for the exam at the given
// 0-based index within the run's result set.
func (r *Resolver) Resolve(exam model.ExamRecord, index int) (string, error) {
	if !strings.EqualFold(filepath.Ext(r.base), ArchiveExt) {
		// Rule 1: base is a directory.
		if err := os.MkdirAll(r.base, 0755); err != nil {
			return "", fmt.Errorf("create output directory %s: %w", r.base, err)
		}
		name := SanitizeFileName(exam.AccessionNumber)
		if name == "" {
			name = fmt.Sprintf("exam_%d", index+1)
		}
		return r.claim(filepath.Join(r.base, name+ArchiveExt), index)
	}

	if _, err := os.Stat(r.base); os.IsNotExist(err) && !r.claimed[r.base] {
		// Rule 2: exact path, first use only.
		return r.claim(r.base, index)
	}

	// Rule 3: suffix the index to avoid overwriting.
	ext := filepath.Ext(r.base)
	stem := strings.TrimSuffix(r.base, ext)
	return r.claim(fmt.Sprintf("%s_%d%s", stem, index+1, ext), index)
}

// claim records the path as used. If it was already handed out this
// run (possible when two exams share an accession number), the
// index-suffixed form is preferred over a collision.
func (r *Resolver) claim(path string, index int) (string, error) {
	if r.claimed[path] {
		ext := filepath.Ext(path)
		stem := strings.TrimSuffix(path, ext)
		path = fmt.Sprintf("%s_%d%s", stem, index+1, ext)
		if r.claimed[path] {
			return "", fmt.Errorf("output path %s already claimed in this run", path)
		}
	}
	r.claimed[path] = true
	return path, nil
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiWhitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in
// file names, keeping accession-number-derived names portable:
//   - invalid characters (<>:"/\|?* and control chars) become underscore
//   - trailing dots are removed
//   - whitespace runs collapse to a single space, trailing removed
func SanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiWhitespace.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}
