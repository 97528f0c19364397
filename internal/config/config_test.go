package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdesk/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func parse(args ...string) (*Config, error) {
	return Parse(pflag.NewFlagSet("linkdesk", pflag.ContinueOnError), args)
}

func TestDefaultsAreValid(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, types.Size{Width: 640, Height: 480}, cfg.Screen.Size)
	assert.Equal(t, 300*time.Millisecond, cfg.Screen.Refresh)
	// two blink frames per second, each shown for half a second
	assert.Equal(t, 2.0, cfg.Screen.BlinkRate)
}

func TestFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
backend: local
local:
  display: 1
screen:
  size: {width: 800, height: 600}
  refresh: 1s
  precision: 8
log:
  format: json
`)
	cfg, err := parse("--config", path, "--precision", "2", "--listen=:9100")
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, 1, cfg.Local.Display)
	assert.Equal(t, types.Size{Width: 800, Height: 600}, cfg.Screen.Size)
	assert.Equal(t, time.Second, cfg.Screen.Refresh)
	assert.Equal(t, 2, cfg.Screen.Precision)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched values keep their defaults
	assert.Equal(t, 24, cfg.Screen.Fold)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvironmentNamesFile(t *testing.T) {
	path := writeConfig(t, "title: from-env\n")
	t.Setenv(EnvVar, path)
	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Title)
}

func TestMissingFile(t *testing.T) {
	_, err := parse("--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMalformedFile(t *testing.T) {
	path := writeConfig(t, "screen: [1, 2\n")
	_, err := parse("--config", path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = "rdp"
	cfg.Screen.Refresh = 0
	cfg.Screen.Thickness = 4
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "backend must be")
	assert.ErrorContains(t, err, "screen.refresh")
	assert.ErrorContains(t, err, "screen.thickness")
	assert.ErrorContains(t, err, "log.level")
}

func TestHelpAndStrayArguments(t *testing.T) {
	t.Setenv(EnvVar, "")
	fs := pflag.NewFlagSet("linkdesk", pflag.ContinueOnError)
	fs.SetOutput(&discardWriter{})
	_, err := Parse(fs, []string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)

	_, err = parse("extra")
	assert.ErrorContains(t, err, "unexpected argument")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
