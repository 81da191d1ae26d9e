package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree. Every flag can also be set through an MCFIT_
// environment variable, e.g. MCFIT_LOG_LEVEL or MCFIT_DATA_DIR.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MCFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "mcfit",
		Short:        "Monte-Carlo size distribution fitting of scattering curves",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			logger.SetDefault(logger.NewWithFormat(v.GetString("log-level"), v.GetString("log-format"), cmd.ErrOrStderr()))
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	root.AddCommand(
		newRunCmd(v),
		newHistogramCmd(v),
		newServeCmd(v),
		newDumpCmd(v),
	)
	return root
}

// bindFlags binds the flags of the executing command only, so that commands sharing a
// flag name do not shadow each other
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	bind := func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return err
}

// existingFile fails unless path names a regular file
func existingFile(kind, path string) error {
	if path == "" {
		return fmt.Errorf("%s file is required", kind)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s file: %w", kind, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s file %s is a directory", kind, path)
	}
	return nil
}
