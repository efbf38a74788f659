package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/internal/domain/models"
)

var insightWidth int

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Summarize the latest predictions of each version",
	Long: `Ask the text model for a short analyst summary of the last rows of each
predictions table. Versions without a table are skipped and generation
errors are printed in place of the summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCLI(func(cli *di.CLI) error {
			insights, err := cli.Insights.GenerateAll(cmd.Context(), cli.Config.Data.Versions)
			for _, in := range insights {
				printInsight(in)
			}
			return err
		})
	},
}

func printInsight(in *models.Insight) {
	switch in.Status {
	case models.InsightSkipped:
		fmt.Println(gold(in.Text))
		return
	case models.InsightFailed:
		fmt.Printf("\n--- %s DATA SUMMARY ---\n", strings.ToUpper(in.Version))
		fmt.Println(red(in.Text))
		return
	}
	fmt.Printf("\n--- %s DATA SUMMARY ---\n", strings.ToUpper(in.Version))
	fmt.Print(renderMarkdown(in.Text, insightWidth))
	if in.Cached {
		fmt.Println(dim("(cached)"))
	}
}

func init() {
	insightCmd.Flags().IntVar(&insightWidth, "width", 80, "word wrap width")
	rootCmd.AddCommand(insightCmd)
}
