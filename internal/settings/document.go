// Package settings edits GOBNILP settings files in place. A settings file is
// line-oriented text of the form `section/key = value`, with #-prefixed
// comments and blank lines preserved verbatim. Only the value portion of a
// matched line is ever rewritten; unknown keys are reported and skipped so the
// file never grows entries the solver would not recognize.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gerrors "github.com/bnkit/gobn/internal/errors"
)

// UnknownSettingError reports a requested key with no occurrence in the
// document. It is a per-key diagnostic, never fatal to the batch.
type UnknownSettingError struct {
	Name string
}

func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("%s is not a known setting", e.Name)
}

// Document is a settings file loaded into memory. Mutations happen on the
// in-memory text; Save replaces the file contents wholesale.
type Document struct {
	path string
	text string
}

// Load reads the settings file at path into memory.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategorySettings, gerrors.SeverityFatal, "read settings file").
			WithContext("path", path)
	}
	return &Document{path: path, text: string(b)}, nil
}

// NewDocument wraps raw settings text not (yet) backed by a file.
func NewDocument(text string) *Document {
	return &Document{text: text}
}

// Text returns the current in-memory document text.
func (d *Document) Text() string { return d.text }

// Apply patches the value of each named setting in the document. Keys are
// processed in sorted order so diagnostics are deterministic. A key with no
// textual occurrence yields an UnknownSettingError in the returned slice and
// is skipped; the rest of the batch still applies (best-effort merge, not
// transactional).
//
// Matching is first-textual-occurrence: a name that is a substring of another
// setting appearing earlier in the file resolves to that earlier line. This
// mirrors the solver's documented patching behavior and is pinned by test;
// callers should pass the full `section/key` path when ambiguity matters.
func (d *Document) Apply(updates map[string]any) []*UnknownSettingError {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)

	var unknown []*UnknownSettingError
	for _, name := range names {
		if err := d.applyOne(name, updates[name]); err != nil {
			slog.Warn("Unknown setting skipped", "setting", name)
			unknown = append(unknown, err)
		}
	}
	return unknown
}

// applyOne rewrites the value portion of the first line containing name.
func (d *Document) applyOne(name string, value any) *UnknownSettingError {
	start := strings.Index(d.text, name)
	if start < 0 {
		return &UnknownSettingError{Name: name}
	}

	lineEnd := strings.IndexByte(d.text[start:], '\n')
	if lineEnd < 0 {
		lineEnd = len(d.text)
	} else {
		lineEnd += start
	}

	line := d.text[start:lineEnd]
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		// Name matched inside a comment or bare token; treat as not found
		// rather than corrupting a non-assignment line.
		return &UnknownSettingError{Name: name}
	}

	valStart := start + eq + 1
	oldVal := d.text[valStart:lineEnd]

	// Preserve the spacing between '=' and the value.
	pad := oldVal[:len(oldVal)-len(strings.TrimLeft(oldVal, " \t"))]

	newVal := fmt.Sprint(value)
	if strings.Contains(oldVal, `"`) {
		newVal = `"` + newVal + `"`
	}

	d.text = d.text[:valStart] + pad + newVal + d.text[lineEnd:]
	return nil
}

// Save writes the document back to its originating file, replacing the
// previous contents. The write goes through a temp file and rename so a
// crashed writer never leaves a truncated settings file behind.
func (d *Document) Save() error {
	if d.path == "" {
		return gerrors.New(gerrors.CategorySettings, gerrors.SeverityFatal, "document has no backing file")
	}
	return d.SaveTo(d.path)
}

// SaveTo writes the document text to the given path atomically.
func (d *Document) SaveTo(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return gerrors.Wrap(err, gerrors.CategorySettings, gerrors.SeverityFatal, "create temp settings file").
			WithContext("dir", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(d.text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return gerrors.Wrap(err, gerrors.CategorySettings, gerrors.SeverityFatal, "write settings file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return gerrors.Wrap(err, gerrors.CategorySettings, gerrors.SeverityFatal, "close settings file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return gerrors.Wrap(err, gerrors.CategorySettings, gerrors.SeverityFatal, "replace settings file").
			WithContext("path", path)
	}
	return nil
}

// Store applies updates against an on-disk settings file: load, patch, write
// back. The file is re-read on every call so external edits between calls are
// never clobbered beyond the patched values (last-writer-wins).
type Store struct {
	Path string
}

// Apply loads the backing file, applies updates, and saves. Unknown-setting
// diagnostics are returned alongside a nil error; only I/O failures are
// errors.
func (s *Store) Apply(updates map[string]any) ([]*UnknownSettingError, error) {
	doc, err := Load(s.Path)
	if err != nil {
		return nil, err
	}
	unknown := doc.Apply(updates)
	if err := doc.Save(); err != nil {
		return unknown, err
	}
	return unknown, nil
}
