package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "List the merged schedule for a date window",
	RunE:  runProject,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Sum income and expense over the next days",
	RunE:  runForecast,
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show a calendar of days with income, expense or both",
	RunE:  runHeatmap,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List recurrence rules",
	RunE:  runRules,
}

func init() {
	for _, c := range []*cobra.Command{projectCmd, heatmapCmd} {
		c.Flags().StringVar(&flagFrom, "from", "", "First day, YYYY-MM-DD (default: --today)")
		c.Flags().StringVar(&flagTo, "to", "", "Last day, YYYY-MM-DD")
		c.Flags().IntVarP(&flagDays, "days", "n", 30, "Window length when --to is not set")
	}
	forecastCmd.Flags().IntVarP(&flagDays, "days", "n", 30, "Forecast horizon in days")

	rootCmd.AddCommand(projectCmd, forecastCmd, heatmapCmd, rulesCmd)
}

func runProject(cmd *cobra.Command, _ []string) error {
	from, to, err := window(flagDays)
	if err != nil {
		return err
	}
	repo, sched, err := openSchedule()
	if err != nil {
		return err
	}
	defer repo.Close()

	res, err := sched.Schedule(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), renderTitle(fmt.Sprintf("SCHEDULE %s .. %s", from, to)))
	fmt.Fprint(out(cmd), renderOccurrences(res.Occurrences))
	for _, f := range res.Failures {
		fmt.Fprintln(out(cmd), warnStyle.Render(fmt.Sprintf("  rule %s not projected: %v", f.RuleID, f.Err)))
	}
	return nil
}

func runForecast(cmd *cobra.Command, _ []string) error {
	today, err := referenceDate()
	if err != nil {
		return err
	}
	repo, sched, err := openSchedule()
	if err != nil {
		return err
	}
	defer repo.Close()

	sum, err := sched.Forecast(cmd.Context(), today, flagDays)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), renderTitle("FORECAST"))
	fmt.Fprint(out(cmd), renderSummary(sum, flagCurrency))
	return nil
}

func runHeatmap(cmd *cobra.Command, _ []string) error {
	from, to, err := window(flagDays)
	if err != nil {
		return err
	}
	repo, sched, err := openSchedule()
	if err != nil {
		return err
	}
	defer repo.Close()

	buckets, err := sched.Heatmap(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), renderTitle(fmt.Sprintf("HEATMAP %s .. %s", from, to)))
	fmt.Fprint(out(cmd), renderHeatmap(buckets, from, to))
	return nil
}

func runRules(cmd *cobra.Command, _ []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	rules, err := repo.ListRules(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprint(out(cmd), renderRules(rules))
	return nil
}
