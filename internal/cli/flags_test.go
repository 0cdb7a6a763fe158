package cli

import (
	"testing"
	"time"

	"github.com/sgflota/sgdeploy/internal/config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty string returns zero", flag: "", want: 0},
		{name: "valid seconds", flag: "5s", want: 5 * time.Second},
		{name: "valid minutes", flag: "2m", want: 2 * time.Minute},
		{name: "valid complex duration", flag: "1m30s", want: 90 * time.Second},
		{name: "bare number", flag: "5", wantErr: true},
		{name: "invalid string", flag: "fast", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeout(tt.flag)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddDeployFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := &DeployFlags{}

	AddDeployFlags(cmd, flags)

	for _, name := range []string{"transport", "connect-timeout", "dry-run"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "%s flag should be registered", name)
	}

	require.NoError(t, cmd.Flags().Set("transport", "native"))
	require.NoError(t, cmd.Flags().Set("connect-timeout", "10s"))
	require.NoError(t, cmd.Flags().Set("dry-run", "true"))
	assert.Equal(t, DeployFlags{Transport: "native", ConnectTimeout: "10s", DryRun: true}, *flags)
}

func TestAddOverrideFlags_NoDryRun(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddOverrideFlags(cmd, &DeployFlags{})
	assert.Nil(t, cmd.Flags().Lookup("dry-run"))
}

func TestDeployFlagsApply(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, DeployFlags{}.Apply(cfg))
	assert.Equal(t, config.TransportOpenSSH, cfg.Transport)
	assert.Zero(t, cfg.ConnectTimeout)

	require.NoError(t, DeployFlags{Transport: "native", ConnectTimeout: "15s"}.Apply(cfg))
	assert.Equal(t, config.TransportNative, cfg.Transport)
	assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)

	err := DeployFlags{ConnectTimeout: "soon"}.Apply(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't look like a valid timeout")
}
