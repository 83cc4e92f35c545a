package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagEnvFile string
	flagDB      string
)

var rootCmd = &cobra.Command{
	Use:           "goldsite",
	Short:         "Tamil Nadu gold rate site backend",
	Long:          "goldsite serves daily gold rates and generated city posts, and runs the publishing and indexing pipelines.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment (missing is fine)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite path (overrides DB_PATH)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(siteFilesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "goldsite %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
