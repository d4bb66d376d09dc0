package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWithGeneratedSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dwagent.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "dwagent", cfg.ServiceName)
	require.NotEmpty(t, cfg.SessionSecretHex)
	require.NotEmpty(t, cfg.MasterKeyHex)
	require.NotEmpty(t, cfg.AdminToken)
	require.FileExists(t, path)

	secret, err := cfg.SessionSecret()
	require.NoError(t, err)
	require.Len(t, secret, 32)
}

func TestLoadPersistsGeneratedSecretsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dwagent.toml")

	first, err := Load(path)
	require.NoError(t, err)

	second, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, first.SessionSecretHex, second.SessionSecretHex)
	require.Equal(t, first.MasterKeyHex, second.MasterKeyHex)
	require.Equal(t, first.AdminToken, second.AdminToken)
}

func TestLoadAppliesIntervalDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dwagent.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.SchedulerIntervalSeconds)
	require.Equal(t, 5, cfg.ExecutorIntervalSeconds)
	require.Equal(t, 30, cfg.ConditionalIntervalSeconds)
}
