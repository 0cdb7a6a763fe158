package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nativeFlags = DeployFlags{Transport: config.TransportNative}

func lastOutputLine(out string) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	return lines[len(lines)-1]
}

func TestDoctorCommand_OfflinePasses(t *testing.T) {
	projectDir(t, true)
	t.Setenv("SSH_AUTH_SOCK", "")

	var out bytes.Buffer
	require.NoError(t, doctorCommand(&out, nativeFlags, true, false))

	output := out.String()
	assert.Contains(t, output, "CONFIG")
	assert.Contains(t, output, "LOCAL")
	assert.NotContains(t, output, "REMOTE", "offline skips the host")
	assert.Contains(t, output, "Key file 'jorge-aws.pem' found")
	assert.Equal(t, "1 issue found", lastOutputLine(output), "only the agent warning")
}

func TestDoctorCommand_MissingKeyFails(t *testing.T) {
	projectDir(t, false)
	t.Setenv("SSH_AUTH_SOCK", "")

	var out bytes.Buffer
	err := doctorCommand(&out, nativeFlags, true, false)

	require.Error(t, err)
	assert.Equal(t, 1, errors.ExitCodeFor(err))
	code, reported := errors.GetExitCode(err)
	assert.True(t, reported, "the report already shows the failure")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Key file 'jorge-aws.pem' not found.")
}

func TestDoctorCommand_FixesKeyPermissions(t *testing.T) {
	dir := projectDir(t, true)
	t.Setenv("SSH_AUTH_SOCK", "")
	key := filepath.Join(dir, "jorge-aws.pem")
	require.NoError(t, os.Chmod(key, 0644))

	var out bytes.Buffer
	require.NoError(t, doctorCommand(&out, nativeFlags, true, true))

	info, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.NotContains(t, out.String(), "readable by others")
}

func TestDoctorCommand_InvalidConfig(t *testing.T) {
	dir := projectDir(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("transport: ftp\n"), 0644))

	var out bytes.Buffer
	err := doctorCommand(&out, DeployFlags{}, false, false)

	require.Error(t, err)
	output := out.String()
	assert.Contains(t, output, "Config is invalid")
	assert.NotContains(t, output, "LOCAL", "nothing else can be checked without a config")
}
