package cli

import (
	"github.com/spf13/cobra"

	"janani-health/internal/app"
	"janani-health/internal/core"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate period summaries for every user active in the window",
		RunE:  runSummarize,
	}
	cmd.Flags().StringP("period", "p", "daily", "daily, weekly or monthly")
	RootCmd.AddCommand(cmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("period")
	period, err := core.ParsePeriod(name)
	if err != nil {
		return err
	}
	e, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	runner, err := app.NewSummaryRunner(e.cfg, e.store, app.NewLLM(e.cfg), e.log)
	if err != nil {
		return err
	}
	report, err := runner.Run(cmd.Context(), period)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
