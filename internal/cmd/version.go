package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tacopii/tacopii/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), handlers.CurrentVersion(), extended)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}

func writeVersion(w io.Writer, v handlers.VersionResponse, extended bool) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", v.App.Name, v.App.Version); err != nil {
		return err
	}
	if !extended {
		return nil
	}
	_, err := fmt.Fprintf(w, "Commit: %s\nBuilt: %s\nGo: %s\nPlatform: %s\n\nGofulmen: %s\nCrucible: %s\n",
		v.App.Commit, v.App.BuildDate, v.App.GoVersion, v.Runtime.Platform,
		v.Dependencies.Gofulmen, v.Dependencies.Crucible)
	return err
}
