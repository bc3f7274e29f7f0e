package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWithHeader(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}

	path, updates, err := w.Write(&Table{
		Names: []string{"A", "B", "C"},
		Rows:  [][]string{{"0", "1", "0"}, {"1", "1", "0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)
	assert.Equal(t, map[string]any{"delimiter": ",", "names": "TRUE"}, updates)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A,B,C\n0,1,0\n1,1,0\n", string(b))
}

func TestWriteWithoutHeader(t *testing.T) {
	w := &Writer{Dir: t.TempDir(), Delimiter: " "}

	path, updates, err := w.Write(&Table{Rows: [][]string{{"0", "1"}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"delimiter": " "}, updates)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0 1\n", string(b))
}

func TestWriteCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	w := &Writer{Dir: dir}
	_, _, err := w.Write(&Table{Rows: [][]string{{"0"}}})
	require.NoError(t, err)
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	_, _, err := w.Write(&Table{Rows: [][]string{{"0", "1"}, {"0"}}})
	require.Error(t, err)
}

func TestWriteRejectsHeaderMismatch(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	_, _, err := w.Write(&Table{Names: []string{"A"}, Rows: [][]string{{"0", "1"}}})
	require.Error(t, err)
}

func TestWriteRejectsEmptyTable(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	_, _, err := w.Write(&Table{})
	require.Error(t, err)
}
