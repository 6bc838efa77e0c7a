package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var dataDir string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "durakv",
	Short: "A durable key-value store backed by a write-ahead log.",
	Long:  `A durable key-value store backed by a write-ahead log.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&dataDir,
		"data-dir",
		"d",
		".",
		"The directory the store keeps its write-ahead log and snapshot in.",
	)
}
