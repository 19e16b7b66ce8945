package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/search-clone/config"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "search-clone"}
	cmd.PersistentFlags().String("config", "", "")
	cmd.PersistentFlags().String("log-level", "info", "")
	cmd.Flags().String("source-endpoint", "", "")
	cmd.Flags().String("source-key", "", "")
	cmd.Flags().String("source-index", "", "")
	cmd.Flags().String("target-endpoint", "", "")
	cmd.Flags().String("target-key", "", "")
	cmd.Flags().String("key-field", config.DefaultKeyField, "")
	cmd.Flags().Int("page-size", config.MaxPageSize, "")
	cmd.Flags().Duration("timeout", 0, "")

	return cmd
}

//nolint:paralleltest
func TestLoadDefaults(t *testing.T) {
	cmd := newCommand()

	cfg, err := config.Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultKeyField, cfg.Clone.KeyField)
	assert.Equal(t, config.MaxPageSize, cfg.Clone.PageSize)
	assert.Equal(t, config.DefaultAPIVersion, cfg.Search.APIVersion)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.SourceEndpoint)
}

//nolint:paralleltest
func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("SEARCH_CLONE_SOURCE_KEY", "env-source-key")
	t.Setenv("SEARCH_CLONE_TARGET_ENDPOINT", "https://env-target.search.windows.net")
	t.Setenv("SEARCH_CLONE_TIMEOUT", "90s")

	cmd := newCommand()
	require.NoError(t, cmd.Flags().Set("source-endpoint", " https://source.search.windows.net "))
	require.NoError(t, cmd.Flags().Set("source-index", "products"))
	require.NoError(t, cmd.Flags().Set("target-endpoint", "https://flag-target.search.windows.net"))
	require.NoError(t, cmd.Flags().Set("page-size", "250"))

	cfg, err := config.Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "https://source.search.windows.net", cfg.SourceEndpoint)
	assert.Equal(t, "env-source-key", cfg.SourceKey)
	assert.Equal(t, "products", cfg.SourceIndex)
	assert.Equal(t, "products", cfg.TargetIndex())
	// explicitly set flags win over the environment
	assert.Equal(t, "https://flag-target.search.windows.net", cfg.TargetEndpoint)
	assert.Equal(t, 250, cfg.Clone.PageSize)
	assert.Equal(t, 90*time.Second, cfg.Clone.Timeout)
}

//nolint:paralleltest
func TestLoadConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clone.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
source-endpoint: https://source.search.windows.net
source-index: catalog
target-key: file-target-key
key-field: Id
`), 0o600))

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("config", file))

	cfg, err := config.Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "https://source.search.windows.net", cfg.SourceEndpoint)
	assert.Equal(t, "catalog", cfg.SourceIndex)
	assert.Equal(t, "file-target-key", cfg.TargetKey)
	assert.Equal(t, "Id", cfg.Clone.KeyField)
}

//nolint:paralleltest
func TestLoadMissingConfigFile(t *testing.T) {
	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "none.yaml")))

	_, err := config.Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
