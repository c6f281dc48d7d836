package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestPanicWritesReport(t *testing.T) {
	app, pr := newApp(&cli.Command{
		Name: "boom",
		Action: func(*cli.Context) error {
			panic("boom")
		},
	})

	reports := t.TempDir()
	repo := t.TempDir()

	require.PanicsWithValue(t, "boom", func() {
		_ = runApp(app, pr, []string{"pickaxe-agent", "--panic-reports", reports, "--repo", repo, "boom"})
	})

	entries, err := os.ReadDir(reports)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = os.Stat(filepath.Join(reports, entries[0].Name(), "stacktrace.dump"))
	require.NoError(t, err)
}
