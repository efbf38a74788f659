package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/chart"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the prediction and R² charts of each version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCLI(func(cli *di.CLI) error {
			dir := cli.Config.Data.OutputDir
			for _, v := range cli.Config.Data.Versions {
				records, err := cli.Results.Load(cmd.Context(), v)
				if errors.Is(err, domrepo.ErrResultsNotFound) {
					fmt.Println(gold("[Skipped] ") + dim(err.Error()))
					continue
				}
				if err != nil {
					return err
				}

				paths, err := cli.Charts.RenderVersion(dir, v, records)
				if errors.Is(err, chart.ErrNoData) {
					fmt.Println(gold("[Skipped] ") + dim(fmt.Sprintf("%s: no forecast records", v)))
					continue
				}
				if err != nil {
					return fmt.Errorf("plot %s: %w", v, err)
				}
				for _, p := range paths {
					fmt.Println(green("saved") + "  " + p)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
}
