package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arc, err := New(dir)
	require.NoError(t, err)

	uri, err := arc.Put(context.Background(), "example.org/2024/01/02/article.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "example.org", "2024", "01", "02", "article.html"))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(data))
}

func TestPutRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	arc, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = arc.Put(context.Background(), "../outside.html", "text/html", []byte("x"))
	require.Error(t, err)
}

func TestNewCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "pages")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
