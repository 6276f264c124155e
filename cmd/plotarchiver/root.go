package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags commandFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "plotarchiver",
		Short:         "Move finished plots from staging to archive drives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&flags.stagingDir, "dir", "d", "", "Staging directory holding finished plots")
	rootCmd.PersistentFlags().StringVarP(&flags.destinationsFile, "conf", "c", "", "File listing destination directories, one per line")

	rootCmd.AddCommand(newRunCommand(ctx, &flags))
	rootCmd.AddCommand(newDestinationsCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
