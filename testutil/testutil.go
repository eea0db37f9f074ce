package testutil

// Helpers and configuration for tests.

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/parse"
	"tidbyt.dev/stopboard/storage"
)

// Backends exercised by tests running against storage.
var Backends = []string{"memory", "sqlite"}

func BuildStorage(t testing.TB, backend string) storage.Storage {
	var s storage.Storage
	if backend == "memory" {
		s = storage.NewMemoryStorage()
	} else if backend == "sqlite" {
		sqlite, err := storage.NewSQLiteStorage()
		require.NoError(t, err)
		s = sqlite
	}
	require.NotNil(t, s, "unknown backend %q", backend)

	return s
}

// Parses files into a fresh storage and returns a Static on top of
// it. Only stop_times.txt is required. Files given as nil are left
// out of the feed.
func BuildStatic(
	t testing.TB,
	backend string,
	files map[string][]string,
) *stopboard.Static {

	s := BuildStorage(t, backend)

	feedWriter, err := s.GetWriter("test")
	require.NoError(t, err)

	metadata, err := parse.ParseStatic(feedWriter, BuildFiles(files))
	require.NoError(t, err)

	reader, err := s.GetReader("test")
	require.NoError(t, err)

	static, err := stopboard.NewStatic(reader, metadata)
	require.NoError(t, err)

	return static
}

func BuildFiles(files map[string][]string) map[string][]byte {
	out := map[string][]byte{}
	for filename, content := range files {
		if content == nil {
			continue
		}
		out[filename] = []byte(strings.Join(content, "\n"))
	}
	return out
}

func BuildZip(
	t testing.TB,
	files map[string][]string,
) []byte {

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}
