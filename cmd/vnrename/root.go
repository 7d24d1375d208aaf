package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vnrename/vnrename/pkg/vnrename"
	"github.com/vnrename/vnrename/pkg/vnrename/config"
)

var (
	flagConfig   string
	flagLogLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vnrename",
	Short: "Batch-normalize Vietnamese filenames with undo support",
	Long: `vnrename renames every file in a folder to a normalized form
(diacritics folded, special characters cleaned, whitespace collapsed).
Each batch is recorded in a local history file and can be undone for
seven days, as long as the renamed files were not touched in the
meantime.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: vnrename.json next to the history file)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newRenameCommand())
	rootCmd.AddCommand(newUndoCommand())
	rootCmd.AddCommand(newHistoryCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of vnrename`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vnrename version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// newCLILogger builds the logger every subcommand uses, honoring the
// persistent --log-level flag.
func newCLILogger() (zerolog.Logger, error) {
	level, err := vnrename.LogLevelFromString(flagLogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	return vnrename.NewLogger(os.Stderr, level), nil
}

// loadConfig reads the config file named by --config, or defaults.
func loadConfig() (config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	return config.Load(flagConfig)
}
