package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/diskmirror/diskmirror/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	cmd := &cobra.Command{Use: "diskmirror"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())

	got := strings.TrimSpace(out.String())
	require.Equal(t, version.Detailed(), got)
}

func TestRootCommand_RegistersVersion(t *testing.T) {
	cmd := newRootCmd()

	found, _, err := cmd.Find([]string{"version"})
	require.NoError(t, err)
	require.Equal(t, "version", found.Name())
	require.NotNil(t, cmd.Flags().Lookup("local-dir"))
	require.NotNil(t, cmd.Flags().Lookup("once"))
}
