package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/chidori/internal/cli"
	"github.com/specialistvlad/chidori/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, &bytes.Buffer{}, args, filepath.Join(t.TempDir(), ".env"))

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error for help")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag makes the command fail with a usage error.
	args := []string{"play", "--this-is-not-a-valid-flag"}

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, args, filepath.Join(t.TempDir(), ".env"))

	// --- Assert ---
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr), "run() should return an ExitError when argument parsing fails")
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_InvalidManifest(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// An HCL file with a syntax error fails while loading, before the
	// runtime is contacted.
	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": `
		prompt "A" {
			template = "Hello"
		// Missing closing brace here
	`})
	args := []string{"commit", "--dry-run", dir}

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, args, filepath.Join(t.TempDir(), ".env"))

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load manifests")
}

func TestRun_DotenvIsRead(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A malformed level in the dotenv file is rejected like a bad flag.
	dir := testutil.WriteFiles(t, map[string]string{".env": "CHIDORI_LOG_LEVEL=loud\n"})

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"graphs"}, filepath.Join(dir, ".env"))

	// --- Assert ---
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Contains(t, exitErr.Message, "LogLevel")
}
