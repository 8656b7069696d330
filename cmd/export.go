/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tsbernar/proxy-auth/internal/db"
	"github.com/tsbernar/proxy-auth/internal/server"
	"github.com/tsbernar/proxy-auth/internal/services"
	"github.com/tsbernar/proxy-auth/internal/storage"
)

var exportKey string

// exportCmd represents the export-users command
var exportCmd = &cobra.Command{
	Use:   "export-users",
	Short: "Upload a JSON snapshot of all accounts",
	Long: `Writes the account list (without password hashes) to the configured
object storage bucket. Usage:

	proxy-auth export-users --config config.yaml [--key accounts/latest.json]
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = closeLog()
		}()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		objects, err := storage.Open(cmd.Context(), cfg.Export)
		if err != nil {
			return err
		}
		defer objects.Close()

		exporter := services.NewExportService(server.NewUserRepository(conn, cfg), objects)
		key, err := exporter.Export(cmd.Context(), exportKey)
		if err != nil {
			return err
		}

		logger.Info("accounts exported", "bucket", objects.Bucket(), "key", key)
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", objects.Bucket(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportKey, "key", "", "object key (default accounts/<timestamp>.json)")
}
