package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()

	got, err := DataDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestDataDirDefault(t *testing.T) {
	orig := userConfigDir
	defer func() { userConfigDir = orig }()

	userConfigDir = func() (string, error) { return "/home/dev/.config", nil }

	got, err := DataDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/dev/.config", AppIdentifier), got)
}

func TestDataDirNoHome(t *testing.T) {
	orig := userConfigDir
	defer func() { userConfigDir = orig }()

	userConfigDir = func() (string, error) { return "", errors.New("$HOME is not defined") }

	_, err := DataDir("")
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	l := NewLayout("/data")

	assert.Equal(t, filepath.Join("/data", "journal.db"), l.Journal())
	assert.Equal(t, filepath.Join("/data", "sidecar.json"), l.Pid())
	assert.Equal(t, filepath.Join("/data", "logs"), l.Logs())
}
