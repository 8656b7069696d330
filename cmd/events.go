/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsbernar/proxy-auth/internal/mq"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print audit events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = closeLog()
		}()

		events, err := mq.Open(cmd.Context(), cfg.Events)
		if err != nil {
			return err
		}
		if events == nil {
			return errors.New("no events backend configured")
		}
		defer events.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("tailing audit events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
		out := cmd.OutOrStdout()
		err = events.Subscribe(ctx, cfg.Events.Channel, func(_ context.Context, msg mq.Message) error {
			_, err := fmt.Fprintln(out, string(msg.Data))
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
