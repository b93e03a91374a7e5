package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ".", cfg.Pattern)
	assert.True(t, cfg.Watch)
	assert.Equal(t, []string{"DATE-OBS", "MJD-OBS", "JD"}, cfg.SortFields)
}

func TestLoadArgs(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "astrohub.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("pattern: night1/*\nport: 9000\njoin: \" | \"\n"), 0o644))

	fs := flag.NewFlagSet("astrohub", flag.ContinueOnError)
	cfg, err := LoadArgs(fs, []string{"serve", "-config", cfgFile, "-sort", "EXPTIME, OBJECT", "-watch=false"})
	require.NoError(t, err)

	assert.Equal(t, "night1/*", cfg.Pattern)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, " | ", cfg.Join)
	assert.Equal(t, []string{"EXPTIME", "OBJECT"}, cfg.SortFields)
	assert.False(t, cfg.Watch)
	assert.Equal(t, cfgFile, cfg.GetConfigFilePath())
}

func TestLoadArgs_PositionalPattern(t *testing.T) {
	fs := flag.NewFlagSet("astrohub", flag.ContinueOnError)
	cfg, err := LoadArgs(fs, []string{"-config", filepath.Join(t.TempDir(), "missing.yaml"), "-port", "7000", "data/*.fits"})
	require.Error(t, err)
	assert.Nil(t, cfg)

	fs = flag.NewFlagSet("astrohub", flag.ContinueOnError)
	cfgFile := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("{}\n"), 0o644))
	cfg, err = LoadArgs(fs, []string{"-config", cfgFile, "-port", "7000", "data/*.fits"})
	require.NoError(t, err)
	assert.Equal(t, "data/*.fits", cfg.Pattern)
	assert.Equal(t, 7000, cfg.Port)
}

func TestIsExcluded(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.IsExcluded("/data/.git"))
	assert.True(t, cfg.IsExcluded("/data/night1/partial.tmp"))
	assert.False(t, cfg.IsExcluded("/data/night1/sci.fits"))
}

func TestIsDataFile(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.IsDataFile("a.fits"))
	assert.True(t, cfg.IsDataFile("a.FTS"))
	assert.False(t, cfg.IsDataFile("a.txt"))
}

func TestSaveAndLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.configPath = tmpFile
	cfg.Port = 9999
	cfg.SetSortFields([]string{"AIRMASS"})

	require.NoError(t, cfg.Save())

	cfg2 := &Config{}
	require.NoError(t, cfg2.loadFromFile(tmpFile))
	assert.Equal(t, 9999, cfg2.Port)
	assert.Equal(t, []string{"AIRMASS"}, cfg2.SortFields)
	assert.Equal(t, ", ", cfg2.Join)
}
