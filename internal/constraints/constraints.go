// Package constraints encodes structure constraints into the line-based
// grammar GOBNILP reads from its dagconstraintsfile. Three directive forms
// exist:
//
//	B<-A      A is required to be a parent of B
//	~B<-A     A must not be a parent of B
//	X_|_Y     X independent of Y (comma-joined variable groups)
//	X_|_Y|Z   X independent of Y given Z
//
// The package also parses the same grammar back, which backs the CLI
// inspection verb and round-trip tests.
package constraints

import (
	"fmt"
	"os"
	"sort"
	"strings"

	gerrors "github.com/bnkit/gobn/internal/errors"
)

// reservedTokens are directive syntax and therefore forbidden inside variable
// names.
var reservedTokens = []string{"<-", "_|_", "~"}

// InvalidVariableNameError reports a variable name colliding with directive
// syntax.
type InvalidVariableNameError struct {
	Name  string
	Token string
}

func (e *InvalidVariableNameError) Error() string {
	return fmt.Sprintf("variable name %q contains reserved token %q", e.Name, e.Token)
}

// Independence is one conditional-independence statement. Given may be empty
// for an unconditioned statement.
type Independence struct {
	Left  []string
	Right []string
	Given []string
}

// Set collects the structure constraints for one learning request.
type Set struct {
	Required       map[string][]string // parent -> children that must be present
	Forbidden      map[string][]string // parent -> children that must be absent
	Independencies []Independence
}

// Empty reports whether the set carries no constraints at all.
func (s *Set) Empty() bool {
	return len(s.Required) == 0 && len(s.Forbidden) == 0 && len(s.Independencies) == 0
}

// Validate checks every variable name for reserved tokens and rejects any
// parent/child pair appearing in both the required and forbidden maps for the
// same direction.
func (s *Set) Validate() error {
	check := func(name string) error {
		for _, tok := range reservedTokens {
			if strings.Contains(name, tok) {
				return &InvalidVariableNameError{Name: name, Token: tok}
			}
		}
		return nil
	}

	for parent, children := range s.Required {
		if err := check(parent); err != nil {
			return err
		}
		for _, child := range children {
			if err := check(child); err != nil {
				return err
			}
		}
	}
	for parent, children := range s.Forbidden {
		if err := check(parent); err != nil {
			return err
		}
		for _, child := range children {
			if err := check(child); err != nil {
				return err
			}
		}
	}
	for _, ind := range s.Independencies {
		for _, group := range [][]string{ind.Left, ind.Right, ind.Given} {
			for _, name := range group {
				if err := check(name); err != nil {
					return err
				}
			}
		}
	}

	for parent, children := range s.Required {
		forbidden := s.Forbidden[parent]
		for _, child := range children {
			for _, f := range forbidden {
				if child == f {
					return gerrors.New(gerrors.CategoryConstraint, gerrors.SeverityFatal,
						"edge both required and forbidden").
						WithContext("parent", parent).
						WithContext("child", child)
				}
			}
		}
	}
	return nil
}

// Encode renders the set as directive text, one directive per line. Required
// edges come first, then independencies, then forbidden edges; parents are
// emitted in sorted order, children in their declared order. Encode validates
// first and returns without output on any violation, so callers never write a
// partial constraint file.
func (s *Set) Encode() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder

	for _, parent := range sortedParents(s.Required) {
		for _, child := range s.Required[parent] {
			fmt.Fprintf(&b, "%s<-%s\n", child, parent)
		}
	}

	for _, ind := range s.Independencies {
		b.WriteString(strings.Join(ind.Left, ","))
		b.WriteString("_|_")
		b.WriteString(strings.Join(ind.Right, ","))
		if len(ind.Given) > 0 {
			b.WriteString("|")
			b.WriteString(strings.Join(ind.Given, ","))
		}
		b.WriteString("\n")
	}

	for _, parent := range sortedParents(s.Forbidden) {
		for _, child := range s.Forbidden[parent] {
			fmt.Fprintf(&b, "~%s<-%s\n", child, parent)
		}
	}

	return b.String(), nil
}

// WriteFile encodes the set and writes the directives to path. With append
// set, directives are added to the existing file; otherwise the file is
// truncated first. Nothing is written when encoding fails.
func (s *Set) WriteFile(path string, append bool) error {
	text, err := s.Encode()
	if err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "open constraint file").
			WithContext("path", path)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "write constraint file").
			WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "close constraint file").
			WithContext("path", path)
	}
	return nil
}

func sortedParents(m map[string][]string) []string {
	parents := make([]string, 0, len(m))
	for p := range m {
		parents = append(parents, p)
	}
	sort.Strings(parents)
	return parents
}
