package main

import (
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDumpCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a result file, or a subtree of it, as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := v.GetString("result")
			if err := existingFile("result", path); err != nil {
				return err
			}
			s, err := store.Open(path)
			if err != nil {
				return err
			}
			return s.ExportJSON(cmd.OutOrStdout(), v.GetString("path"))
		},
	}
	cmd.Flags().StringP("result", "r", "", "result file")
	cmd.Flags().StringP("path", "p", "/", "subtree to print, e.g. /analyses/MCResult1/optimization")
	return cmd
}
