/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tsbernar/proxy-auth/config"
	"github.com/tsbernar/proxy-auth/internal/cli"
	"github.com/tsbernar/proxy-auth/internal/db"
	"github.com/tsbernar/proxy-auth/internal/mq"
	"github.com/tsbernar/proxy-auth/internal/server"
	"github.com/tsbernar/proxy-auth/internal/services"
)

// addUserCmd represents the add-user command
var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Interactively create an account",
	Long: `Prompts for a username, the admin flag and a password, then stores the
new account. Use it to bootstrap the first admin. Usage:

	proxy-auth add-user --config config.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = closeLog()
		}()

		if err := db.Migrate(cfg); err != nil {
			return err
		}
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		opts, closeEvents, err := eventOptions(cmd, cfg, logger)
		if err != nil {
			return err
		}
		defer closeEvents()

		users := services.NewUserService(server.NewUserRepository(conn, cfg), opts...)
		ctx := services.WithActor(cmd.Context(), "cli")
		user, err := cli.AddUser(ctx, cli.NewPrompter(os.Stdin, cmd.OutOrStdout()), users)
		if err != nil {
			return err
		}

		logger.Info("user created", "username", user.Username, "admin", user.IsAdmin)
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addUserCmd)
}

// eventOptions connects the configured audit backend, if any.
func eventOptions(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) ([]services.Option, func(), error) {
	opts := []services.Option{services.WithLogger(logger)}
	events, err := mq.Open(cmd.Context(), cfg.Events)
	if err != nil {
		return nil, nil, err
	}
	if events == nil {
		return opts, func() {}, nil
	}
	opts = append(opts, services.WithEvents(events, cfg.Events.Channel))
	return opts, func() { _ = events.Close() }, nil
}
