// Package cli holds the plategate commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anime-shed/plategate-go/internal/config"
	"github.com/anime-shed/plategate-go/internal/logger"
)

// app carries state shared by all subcommands of one invocation
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

// NewRootCommand builds the command tree. Flags override PLATEGATE_* variables.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "plategate",
		Short:         "Look up vehicle owners on the cantonal registration portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(cfg.LogLevel)
			logger.SetFormat(cfg.LogFormat)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
	flags.String("base-url", "", "portal base URL")
	flags.String("ocr-engine", "", "registered OCR engine")
	flags.String("captcha-dump-dir", "", "directory receiving every denoised captcha")
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = a.v.BindPFlag("ocr_engine", flags.Lookup("ocr-engine"))
	_ = a.v.BindPFlag("captcha_dump_dir", flags.Lookup("captcha-dump-dir"))

	cmd.AddCommand(newGrabCommand(a), newCalibrateCommand(a), newServeCommand(a))
	return cmd
}

// Execute runs the command line with ctx as the root context
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
