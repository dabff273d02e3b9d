package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeepFile(t *testing.T) {
	maxBytes := DefaultPolicy().MaxFileBytes

	cases := []struct {
		name string
		path string
		size int64
		keep bool
	}{
		{"go source", "cmd/api/main.go", 1200, true},
		{"markdown", "README.md", 400, true},
		{"dockerfile without extension", "Dockerfile", 300, true},
		{"makefile", "Makefile", 300, true},
		{"env file", ".env", 100, true},
		{"binary image", "assets/logo.png", 900, false},
		{"empty file", "notes.txt", 0, false},
		{"oversized file", "data/dump.sql", maxBytes + 1, false},
		{"hidden file", ".gitignore", 50, false},
		{"lockfile extension", "yarn.lock", 800, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.keep, keepFile(tc.path, tc.size, maxBytes))
		})
	}
}

func TestSkipDir(t *testing.T) {
	require.True(t, skipDir("node_modules"))
	require.True(t, skipDir(".git"))
	require.True(t, skipDir("vendor"))
	require.False(t, skipDir("internal"))
	require.False(t, skipDir("."))
}

func TestStripArchiveRoot(t *testing.T) {
	require.Equal(t, "src/main.go", stripArchiveRoot("repo-main/src/main.go"))
	require.Equal(t, "README.md", stripArchiveRoot("repo-main/README.md"))
	require.Equal(t, "", stripArchiveRoot("repo-main"))
}
