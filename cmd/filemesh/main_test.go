package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "filemesh.yaml")
	cfg := "provider: mock\ntools:\n  root: " + dir + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		runTrace, runRender, runSteps = false, false, false
		configPath = ""
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "filemesh version")
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `Supervisor{"Supervisor"}`)
	assert.Contains(t, out, "FolderOperations")
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "--config", writeConfig(t), "--trace", "--steps", "list", "the", "files")
	require.NoError(t, err)
	assert.Contains(t, out, "Mock response to: list the files")
	assert.Contains(t, out, "trace:")
	assert.Contains(t, out, "node: FileOperations")
}

func TestRun_MissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "hello")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "created  a.txt\n", 20, "created a.txt"},
		{"ascii", "abcdefghij", 8, "abcde..."},
		{"multibyte", "äöüäöüäöüä", 8, "äöüäö..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
