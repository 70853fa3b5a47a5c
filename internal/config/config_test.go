package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malirobot/musiclinks/internal/traversal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://catalog.example
  token: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 60, cfg.Catalog.RequestsPerMinute)
	require.Equal(t, 100, cfg.Traversal.MaxArtists)
	require.Equal(t, traversal.StrategyBFS, cfg.Traversal.Strategy)
	require.Equal(t, "memory", cfg.Database.Provider)
	require.True(t, cfg.Traversal.IncludeCredits)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://catalog.example
  token: secret
traversal:
  max_artists: 25
  strategy: dfs
  max_depth: 2
database:
  provider: postgres
  dsn: postgres://localhost/musiclinks
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Traversal.MaxArtists)
	require.Equal(t, traversal.StrategyDFS, cfg.Traversal.Strategy)
	require.Equal(t, "postgres", cfg.Database.Provider)
}

func TestLoadRejectsMissingCatalogToken(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://catalog.example
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "catalog.token")
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://catalog.example
  token: secret
database:
  provider: postgres
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "database.dsn")
}

func TestLoadRejectsUnknownArchiveProvider(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://catalog.example
  token: secret
archive:
  provider: tape
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "archive provider")
}
