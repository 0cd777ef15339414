package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/plugin-sources/internal/secrets"
)

// execute runs the root command; callers do not run in parallel because
// the root command binds flags to the global viper instance
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig creates a filesystem source with one present and one absent module
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "atoms", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atom.py"), []byte("pass\n"), 0o600))

	cfg := fmt.Sprintf(`sources:
  - name: local
    packages:
      atoms.hello: ""
    file:
      path: %s
  - name: partial
    packages:
      atoms.hello: ""
      atoms.missing: ""
    file:
      path: %s
importer:
  cacheDir: %s
%s`, root, root, t.TempDir(), extra)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "plugin-sources "))
}

func TestSecretsCommands(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	_, err := execute(t, "", "secrets", "keygen", "--output", keyFile)
	require.NoError(t, err)
	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// existing key files are never overwritten
	_, err = execute(t, "", "secrets", "keygen", "--output", keyFile)
	require.Error(t, err)

	out, err := execute(t, "top-secret\n", "secrets", "seal", "--key-file", keyFile)
	require.NoError(t, err)
	sealed := strings.TrimSpace(out)
	assert.True(t, secrets.IsSealed(sealed))

	cipher, err := secrets.NewCipherFromKeyFile(keyFile)
	require.NoError(t, err)
	plain, err := cipher.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "top-secret", plain)

	_, err = execute(t, "   \n", "secrets", "seal", "--key-file", keyFile)
	require.ErrorContains(t, err, "cannot be empty")

	out, err = execute(t, "", "secrets", "keygen")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestSourcesListCommand(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "sources", "list", "--config", path, "--format", "json")
	require.NoError(t, err)
	var views []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "local", views[0]["name"])
	assert.Equal(t, "fs", views[0]["type"])

	out, err = execute(t, "", "sources", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(out), "PACKAGES")
	assert.Contains(t, out, "partial")

	_, err = execute(t, "", "sources", "list", "--config", path, "--format", "xml")
	require.Error(t, err)
}

func TestLoadCommand(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "load", "--config", path, "--source", "local")
	require.NoError(t, err)
	var report struct {
		ID      string `json:"id"`
		Sources []struct {
			Name    string `json:"name"`
			Modules []struct {
				Name  string `json:"name"`
				Error string `json:"error"`
			} `json:"modules"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.ID)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "local", report.Sources[0].Name)

	// the report is printed even when loading fails
	out, err = execute(t, "", "load", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "atoms.missing")

	_, err = execute(t, "", "load", "--config", path, "--source", "absent")
	require.Error(t, err)
}

func TestPrimeDBCommand(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "", "prime-db", "--config", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "local\tfs\t1 packages")
	assert.Contains(t, out, "partial\tfs\t2 packages")

	_, err = execute(t, "", "prime-db", "--config", path)
	require.ErrorContains(t, err, "database configuration is required")
}

func TestMigrateCommandRequiresDatabase(t *testing.T) {
	path := writeConfig(t, "")
	_, err := execute(t, "", "migrate", "up", "--config", path, "--yes")
	require.ErrorContains(t, err, "database configuration is required")
}

func TestConfirmed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "Y\n", want: true},
		{input: "no\n", want: false},
		{input: "\n", want: false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			t.Parallel()
			cmd := &cobra.Command{}
			cmd.Flags().Bool("yes", false, "")
			cmd.SetIn(strings.NewReader(tt.input))
			cmd.SetErr(&bytes.Buffer{})
			got, err := confirmed(cmd, "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandsRequireConfig(t *testing.T) {
	for _, args := range [][]string{{"serve"}, {"load"}, {"sources", "list"}, {"prime-db"}} {
		_, err := execute(t, "", args...)
		require.Error(t, err, args)
	}
}
