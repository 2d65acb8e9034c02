package options

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	config, err := ReadConfig(strings.NewReader(`
requireVerified: false
workers: 3
roots: [N.Program::Main]
`))
	require.NoError(t, err)
	assert.False(t, config.RequireVerified)
	assert.False(t, config.StrictIntrinsics)
	assert.Equal(t, 3, config.Workers)
	assert.Equal(t, []string{"N.Program::Main"}, config.Roots)

	config, err = ReadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, config.RequireVerified)

	_, err = ReadConfig(strings.NewReader("workerz: 3\n"))
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cilc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strictIntrinsics: true\nworkers: 3\n"), 0o600))

	var flags Flags
	command := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	flags.AddTo(command)
	require.NoError(t, command.ParseFlags([]string{"--config", path, "--workers", "5", "--root", "N.A::B"}))

	config, err := flags.Config(command)
	require.NoError(t, err)
	assert.True(t, config.RequireVerified)
	assert.True(t, config.StrictIntrinsics)
	assert.Equal(t, 5, config.Workers)
	assert.Equal(t, []string{"N.A::B"}, config.Roots)
	assert.NotNil(t, config.Logger)
}

const program = `
target:
  pointerSize: 8
types:
- namespace: N
  name: Program
  methods:
  - name: Main
    sig: int32()
    body: |
      ldc.i4.1
      ldc.i4.2
      ret
  - name: Other
    sig: void()
    body: |
      ret
`

func TestLower(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(program), 0o600))

	config, err := ReadConfig(strings.NewReader("requireVerified: false\nroots: [N.Program::Main]\n"))
	require.NoError(t, err)

	result, err := config.Lower(path)
	require.NoError(t, err)
	require.Len(t, result.Methods, 1)
	assert.Equal(t, 1, result.Warnings())

	var b strings.Builder
	PrintWarnings(&b, result)
	assert.Contains(t, b.String(), "warning: ")
	assert.Contains(t, b.String(), "N.Program::Main()")

	config.Roots = []string{"N.Program::Missing"}
	_, err = config.Lower(path)
	assert.Error(t, err)
}
