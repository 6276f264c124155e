package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"plotarchiver/internal/arbiter"
	"plotarchiver/internal/daemon"
	"plotarchiver/internal/logging"
)

func newRunCommand(ctx *commandContext, flags *commandFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the archiver in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Number of concurrent transfer workers")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := daemon.Run(signalCtx, cfg, logger); err != nil {
		if errors.Is(err, arbiter.ErrClaimConflict) {
			return fmt.Errorf("archiver stopped on an internal claim conflict: %w", err)
		}
		return err
	}
	return nil
}
