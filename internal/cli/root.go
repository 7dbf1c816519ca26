// Package cli is the registrar command line: the HTTP service, one-shot
// queue drains, schema migration and operator helpers.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"registrar/internal/platform/config"
	"registrar/internal/platform/logger"
	"registrar/internal/registration/ports"
)

// TxFactory opens the registration transaction runner over db.
type TxFactory func(db *sql.DB, timeout time.Duration) ports.TxRunner

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Format     string // "json" | "text"

	newTx  TxFactory
	cfg    config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. newTx supplies the transactional
// store the commands run against.
func NewRootCommand(newTx TxFactory) *cobra.Command {
	opts := &RootOptions{newTx: newTx}

	cmd := &cobra.Command{
		Use:           "registrar",
		Short:         "Attribution registration service",
		Long:          "Accepts attribution registration requests and drains them into stored sources and triggers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			log, err := logger.NewWriter(cmd.ErrOrStderr(), opts.LogLevel, opts.LogFormat)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = log
			slog.SetDefault(log)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "json", "log format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewEnrollCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
