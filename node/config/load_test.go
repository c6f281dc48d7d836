package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNothing(t *testing.T) {
	assert := assert.New(t)

	{
		cfg, err := FromFile(os.DevNull, Default())
		assert.Nil(err, "error should be nil")
		assert.Equal(Default(), cfg,
			"config from empty file should be the same as default")
	}

	{
		cfg, err := FromFile("./does-not-exist.toml", Default())
		assert.Nil(err, "error should be nil")
		assert.Equal(Default(), cfg,
			"config from not existing file should be the same as default")
	}

	{
		_, err := FromFile("./does-not-exist.toml", nil)
		assert.Error(err)
	}
}

func TestParitalConfig(t *testing.T) {
	cfgString := `
		[Deals]
		SettleDelay = "250ms"
		StageTimeout = "10m"

		[Store]
		Backend = "memory"
	`
	expected := Default()
	expected.Deals.SettleDelay = Duration(250 * time.Millisecond)
	expected.Deals.StageTimeout = Duration(10 * time.Minute)
	expected.Store.Backend = BackendMemory

	{
		cfg, err := FromReader(bytes.NewReader([]byte(cfgString)), Default())
		require.NoError(t, err)
		require.Equal(t, expected, cfg)
	}

	{
		f, err := os.Create(filepath.Join(t.TempDir(), "pickaxe-config"))
		require.NoError(t, err)
		_, err = f.WriteString(cfgString)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		cfg, err := FromFile(f.Name(), Default())
		require.NoError(t, err)
		require.Equal(t, expected, cfg)
	}
}

func TestInvalidConfig(t *testing.T) {
	for name, cfgString := range map[string]string{
		"backend":     "[Store]\nBackend = \"postgres\"",
		"collection":  "[Store]\nCollection = \"\"",
		"concurrency": "[Worker]\nConcurrency = 0",
		"duration":    "[Deals]\nSettleDelay = \"soon\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromReader(strings.NewReader(cfgString), Default())
			require.Error(t, err)
		})
	}
}

func TestDefaultRoundTrips(t *testing.T) {
	b, err := ConfigComment(Default())
	require.NoError(t, err)
	require.Contains(t, string(b), `SettleDelay = "1s"`)

	cfg, err := FromReader(bytes.NewReader(b), Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
