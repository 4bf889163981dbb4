package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "once", "symbols"})
	assert.NotNil(t, root.RunE)
}

func TestSymbolsPrintsConfiguredInstruments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exchange:\n  symbols: [btcusdt, ethusdt, btcusdt]\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"symbols", "--config", path})
	require.NoError(t, root.Execute())
	assert.Equal(t, "BTCUSDT\nETHUSDT\n", out.String())
}

func TestMissingConfigIsFatal(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"symbols", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal configuration")
}
