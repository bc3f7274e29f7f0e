package constraints

import (
	"fmt"
	"os"
	"strings"

	gerrors "github.com/bnkit/gobn/internal/errors"
)

// Parse reads directive text back into a Set. Blank lines and #-comments are
// skipped. The inverse of Encode up to parent ordering.
func Parse(text string) (*Set, error) {
	set := &Set{
		Required:  make(map[string][]string),
		Forbidden: make(map[string][]string),
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.Contains(line, "_|_"):
			ind, err := parseIndependence(line)
			if err != nil {
				return nil, gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "parse constraint file").
					WithContext("line", i+1)
			}
			set.Independencies = append(set.Independencies, ind)
		case strings.HasPrefix(line, "~"):
			child, parent, err := parseEdge(line[1:])
			if err != nil {
				return nil, gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "parse constraint file").
					WithContext("line", i+1)
			}
			set.Forbidden[parent] = append(set.Forbidden[parent], child)
		case strings.Contains(line, "<-"):
			child, parent, err := parseEdge(line)
			if err != nil {
				return nil, gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "parse constraint file").
					WithContext("line", i+1)
			}
			set.Required[parent] = append(set.Required[parent], child)
		default:
			return nil, gerrors.New(gerrors.CategoryConstraint, gerrors.SeverityFatal, "unrecognized constraint directive").
				WithContext("line", i+1).
				WithContext("directive", line)
		}
	}
	return set, nil
}

// ParseFile reads and parses the constraint file at path.
func ParseFile(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.CategoryConstraint, gerrors.SeverityFatal, "read constraint file").
			WithContext("path", path)
	}
	return Parse(string(b))
}

// parseEdge splits `child<-parent` into its two variable names.
func parseEdge(s string) (child, parent string, err error) {
	parts := strings.SplitN(s, "<-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed edge directive %q", s)
	}
	return parts[0], parts[1], nil
}

// parseIndependence splits `lhs_|_rhs` or `lhs_|_rhs|cond` into groups.
func parseIndependence(s string) (Independence, error) {
	parts := strings.SplitN(s, "_|_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Independence{}, fmt.Errorf("malformed independence directive %q", s)
	}

	ind := Independence{Left: splitGroup(parts[0])}

	rest := parts[1]
	if idx := strings.IndexByte(rest, '|'); idx >= 0 {
		if idx == 0 || idx == len(rest)-1 {
			return Independence{}, fmt.Errorf("malformed independence directive %q", s)
		}
		ind.Right = splitGroup(rest[:idx])
		ind.Given = splitGroup(rest[idx+1:])
	} else {
		ind.Right = splitGroup(rest)
	}
	return ind, nil
}

func splitGroup(s string) []string {
	return strings.Split(s, ",")
}
