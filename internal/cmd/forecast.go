package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/internal/domain/models"
)

var forecastVersions []string

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run the walk-forward forecast for each data version",
	Long: `Run the walk-forward ridge forecast.

Each version's feature table is merged with the sentiment index, the
training window is chosen from the number of valid rows and the
predictions table is written to the output directory. Without --version
every configured version runs. A failing version does not stop the
others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withCLI(func(cli *di.CLI) error {
			return runForecast(ctx, cli, forecastVersions)
		})
	},
}

func runForecast(ctx context.Context, cli *di.CLI, versions []string) error {
	if len(versions) == 0 {
		versions = cli.Pipeline.Versions()
	}

	var failed []string
	for _, v := range versions {
		fmt.Println()
		fmt.Println(titleStyle.Render(fmt.Sprintf("Ridge forecast [%s] for %s", strings.ToUpper(v), cli.Config.Data.Symbol)))

		out, err := cli.Pipeline.Run(ctx, v)
		if err != nil {
			fmt.Println(red("FAILED") + "  " + dim(err.Error()))
			failed = append(failed, v)
			continue
		}
		printOutcome(out)
	}

	if len(failed) > 0 {
		return fmt.Errorf("forecast failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

func printOutcome(out *models.RunOutcome) {
	fmt.Println(field("run", out.RunID))
	fmt.Println(field("rows", fmt.Sprint(out.Rows)))
	if out.InitialTrainSize > 0 {
		fmt.Println(field("window", fmt.Sprintf("initial %d, step %d", out.InitialTrainSize, out.StepSize)))
	}
	fmt.Println(field("records", fmt.Sprint(len(out.Records))))
	if n := out.FailedSteps(); n > 0 {
		fmt.Println(field("failed", gold(fmt.Sprint(n))))
	}
	if r2, ok := lastR2(out.Records); ok {
		fmt.Println(field("last r2", fmt.Sprintf("%.6f", r2)))
	}
	fmt.Println(field("output", out.OutputPath))

	switch out.Status {
	case models.RunEmpty:
		fmt.Println(gold("EMPTY") + "  " + dim(out.Reason))
	default:
		fmt.Println(green("DONE") + "  " + dim(out.FinishedAt.Sub(out.StartedAt).String()))
	}
}

func lastR2(records []models.ForecastRecord) (float64, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if !math.IsNaN(records[i].R2) {
			return records[i].R2, true
		}
	}
	return 0, false
}

func init() {
	forecastCmd.Flags().StringArrayVar(&forecastVersions, "version", nil, "data version to run (api or csv, repeatable)")
	rootCmd.AddCommand(forecastCmd)
}
