package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/levctl/internal/testutils"
)

func writeTempSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsFilePartial(t *testing.T) {
	path := writeTempSettings(t, `
lever_a:
  cc: 11
  mode: 1
scale:
  root: 2
  channel: 5
`)

	settings, err := loadSettingsFile(path)
	require.NoError(t, err)

	// Specified fields land, everything else keeps its defaults.
	ja := testutils.NewJSONAsserter(t)
	ja.Assert(testutils.MustJSON(settings), `{
		"lever_a":      {"cc": 11, "min": 0, "max": 127, "mode": 1, "deadzone": 0, "return_time": 0},
		"lever_b":      {"cc": -1, "min": 0, "max": 127, "mode": 0, "deadzone": 0, "return_time": 0},
		"lever_push_a": {"cc": -1, "mode": 0, "threshold": 50, "hold_time": 0},
		"lever_push_b": {"cc": -1, "mode": 0, "threshold": 50, "hold_time": 0},
		"touch":        {"cc": -1, "min": 0, "max": 127, "mode": 0, "sensitivity": 50},
		"scale":        {"root": 2, "pattern": 0, "octave": 4, "channel": 5}
	}`)
}

func TestLoadSettingsFileMissing(t *testing.T) {
	_, err := loadSettingsFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadSettingsFileMalformed(t *testing.T) {
	path := writeTempSettings(t, "lever_a: [broken")
	_, err := loadSettingsFile(path)
	assert.Error(t, err)
}
