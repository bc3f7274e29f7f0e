package constraints

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequiredEdges(t *testing.T) {
	set := &Set{Required: map[string][]string{"C": {"A", "B"}}}
	text, err := set.Encode()
	require.NoError(t, err)
	assert.Equal(t, "A<-C\nB<-C\n", text)
}

func TestEncodeForbiddenEdges(t *testing.T) {
	set := &Set{Forbidden: map[string][]string{"C": {"A", "B"}}}
	text, err := set.Encode()
	require.NoError(t, err)
	assert.Equal(t, "~A<-C\n~B<-C\n", text)
}

func TestEncodeIndependenceTwoGroups(t *testing.T) {
	set := &Set{Independencies: []Independence{
		{Left: []string{"A", "B"}, Right: []string{"C"}},
	}}
	text, err := set.Encode()
	require.NoError(t, err)
	assert.Equal(t, "A,B_|_C\n", text)
}

func TestEncodeIndependenceConditioned(t *testing.T) {
	set := &Set{Independencies: []Independence{
		{Left: []string{"A"}, Right: []string{"B", "C"}, Given: []string{"D"}},
	}}
	text, err := set.Encode()
	require.NoError(t, err)
	assert.Equal(t, "A_|_B,C|D\n", text)
}

func TestEncodeParentOrderIsSorted(t *testing.T) {
	set := &Set{Required: map[string][]string{"Z": {"A"}, "B": {"A"}}}
	text, err := set.Encode()
	require.NoError(t, err)
	assert.Equal(t, "A<-B\nA<-Z\n", text)
}

func TestEncodeRejectsReservedTokens(t *testing.T) {
	for _, name := range []string{"a<-b", "a_|_b", "~a"} {
		set := &Set{Required: map[string][]string{"C": {name}}}
		_, err := set.Encode()
		var ive *InvalidVariableNameError
		require.ErrorAs(t, err, &ive, "name %q", name)
		assert.Equal(t, name, ive.Name)
	}
}

func TestEncodeRejectsConflictingEdge(t *testing.T) {
	set := &Set{
		Required:  map[string][]string{"C": {"A"}},
		Forbidden: map[string][]string{"C": {"A"}},
	}
	_, err := set.Encode()
	require.Error(t, err)
}

func TestWriteFileOverwriteAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myconstraints.txt")

	first := &Set{Required: map[string][]string{"C": {"A"}}}
	require.NoError(t, first.WriteFile(path, false))

	second := &Set{Forbidden: map[string][]string{"D": {"B"}}}
	require.NoError(t, second.WriteFile(path, true))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A<-C\n~B<-D\n", string(b))

	third := &Set{Required: map[string][]string{"X": {"Y"}}}
	require.NoError(t, third.WriteFile(path, false))

	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Y<-X\n", string(b))
}

func TestWriteFileInvalidSetWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myconstraints.txt")
	good := &Set{Required: map[string][]string{"C": {"A"}}}
	require.NoError(t, good.WriteFile(path, false))

	bad := &Set{Required: map[string][]string{"C": {"a<-b"}}}
	require.Error(t, bad.WriteFile(path, false))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A<-C\n", string(b), "failed encode must not touch the file")
}

func TestParseRoundTrip(t *testing.T) {
	set := &Set{
		Required:  map[string][]string{"C": {"A", "B"}},
		Forbidden: map[string][]string{"D": {"E"}},
		Independencies: []Independence{
			{Left: []string{"A", "B"}, Right: []string{"C"}},
			{Left: []string{"A"}, Right: []string{"B", "C"}, Given: []string{"D"}},
		},
	}
	text, err := set.Encode()
	require.NoError(t, err)

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, set.Required, parsed.Required)
	assert.Equal(t, set.Forbidden, parsed.Forbidden)
	assert.Equal(t, set.Independencies, parsed.Independencies)
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	parsed, err := Parse("# required edges\n\nA<-C\n")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"C": {"A"}}, parsed.Required)
}

func TestParseRejectsMalformedDirective(t *testing.T) {
	_, err := Parse("A<-\n")
	require.Error(t, err)
	_, err = Parse("what is this\n")
	require.Error(t, err)
	_, err = Parse("A_|_\n")
	require.Error(t, err)
}
