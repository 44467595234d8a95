package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMachineIDPaths(t *testing.T, paths ...string) {
	t.Helper()
	prev := machineIDPaths
	machineIDPaths = paths
	t.Cleanup(func() { machineIDPaths = prev })
}

func TestDeviceID_PrefersMachineID(t *testing.T) {
	dir := t.TempDir()
	mid := filepath.Join(dir, "machine-id")
	require.NoError(t, os.WriteFile(mid, []byte("4f1c2a9e0b\n"), 0o644))
	withMachineIDPaths(t, filepath.Join(dir, "absent"), mid)

	id, err := DeviceID(filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Equal(t, "4f1c2a9e0b", id)
	assert.NoFileExists(t, filepath.Join(dir, "data", deviceIDFile))
}

func TestDeviceID_GeneratesAndKeeps(t *testing.T) {
	withMachineIDPaths(t)
	dir := filepath.Join(t.TempDir(), "data")

	first, err := DeviceID(dir)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, deviceIDFile))

	second, err := DeviceID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeviceID_EmptyMachineIDIgnored(t *testing.T) {
	dir := t.TempDir()
	mid := filepath.Join(dir, "machine-id")
	require.NoError(t, os.WriteFile(mid, []byte("  \n"), 0o644))
	withMachineIDPaths(t, mid)

	id, err := DeviceID(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "", readID(filepath.Join(dir, deviceIDFile)))
}
