package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/cutout/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "do",
		Short: "Development and operations tools for cutout",
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.CleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
