package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func (a *app) evaluateCommand() *cobra.Command {
	var (
		numbers   []int
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the evaluation cases and write the reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}
			cases, err := pickCases(services.Cases, numbers)
			if err != nil {
				return err
			}

			report, runErr := services.Evaluator.Run(cmd.Context(), domain.SessionContext{SessionID: sessionID}, cases)
			if report == nil {
				return runErr
			}
			if a.asJSON {
				if err := a.printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			return runErr
		},
	}
	cmd.Flags().IntSliceVar(&numbers, "case", nil, "case numbers to run (default all)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session context for the run")
	return cmd
}

func pickCases(all []domain.EvaluationCase, numbers []int) ([]domain.EvaluationCase, error) {
	if len(numbers) == 0 {
		return all, nil
	}
	byNumber := make(map[int]domain.EvaluationCase, len(all))
	for _, c := range all {
		byNumber[c.Number] = c
	}
	out := make([]domain.EvaluationCase, 0, len(numbers))
	for _, n := range numbers {
		c, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("unknown case %d", n)
		}
		out = append(out, c)
	}
	return out, nil
}

func printReport(cmd *cobra.Command, report *domain.EvaluationReport) {
	cmd.Printf("Run %s: %d cases, %d reported, %d failed\n",
		report.RunID, len(report.Cases), len(report.Reported()), len(report.Failed()))
	for _, c := range report.Cases {
		if c.Status != domain.CaseReported {
			cmd.Printf("  #%-2d %-8s %s\n", c.Case.Number, c.Status, c.Error)
			continue
		}
		cmd.Printf("  #%-2d %.3f %s\n", c.Case.Number, c.Average, c.Rating.Label())
	}
	if len(report.MetricAverages) == 0 {
		return
	}
	cmd.Println()
	for _, m := range report.MetricAverages {
		cmd.Printf("  %-20s %.3f %s\n", m.Metric, m.Score, m.Rating.Label())
	}
	cmd.Printf("  %-20s %.3f %s\n", "overall", report.OverallAverage, report.OverallRating.Label())
	if len(report.Recommendations) == 0 {
		cmd.Println()
		cmd.Println(domain.AllMetricsFine)
		return
	}
	cmd.Println()
	for _, r := range report.Recommendations {
		cmd.Printf("  %s: %s\n", r.Metric, r.Text)
	}
}
