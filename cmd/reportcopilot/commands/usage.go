package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/ai/tracker"
	"github.com/teranos/reportcopilot/pulse/budget"
)

// UsageCmd reports LLM usage and budget
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: glyphPulse + " Show LLM usage, cost and budget",
	Long: glyphPulse + ` Show LLM usage recorded in ai_model_usage, per model, and the spend
against the daily and monthly budget.

Examples:
  reportcopilot usage
  reportcopilot usage --since 168h`,
	RunE: runUsage,
}

func init() {
	UsageCmd.Flags().Duration("since", 24*time.Hour, "Window to aggregate")
	UsageCmd.Flags().Bool("json", false, "Print usage as JSON")
}

func runUsage(cmd *cobra.Command, args []string) error {
	since, _ := cmd.Flags().GetDuration("since")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from := time.Now().Add(-since)
	usage := tracker.NewUsageTracker(a.db, 0)
	stats, err := usage.GetUsageStats(from)
	if err != nil {
		return err
	}
	models, err := usage.GetModelBreakdown(from)
	if err != nil {
		return err
	}
	bt := budget.NewTracker(a.db, a.cfg.Budget)
	status, err := bt.GetStatus()
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(struct {
			Since  time.Time                `json:"since"`
			Stats  *tracker.UsageStats      `json:"stats"`
			Models []tracker.ModelBreakdown `json:"models"`
			Budget *budget.Status           `json:"budget"`
		}{from.UTC(), stats, models, status})
	}

	pterm.DefaultSection.Printfln("%s Usage over the last %v", glyphPulse, since)
	pterm.Printfln("Requests:     %d (%.0f%% successful)", stats.TotalRequests, stats.SuccessRate*100)
	pterm.Printfln("Tokens:       %d", stats.TotalTokens)
	pterm.Printfln("Cost:         $%.4f", stats.TotalCost)
	pterm.Printfln("Models:       %d", stats.UniqueModels)

	if len(models) > 0 {
		pterm.Println()
		data := pterm.TableData{{"Model", "Provider", "Requests", "Tokens", "Cost", "Avg ms"}}
		for _, m := range models {
			avg := "-"
			if m.AvgResponseTimeMs != nil {
				avg = fmt.Sprintf("%.0f", *m.AvgResponseTimeMs)
			}
			data = append(data, []string{
				m.ModelName, m.ModelProvider,
				fmt.Sprintf("%d", m.RequestCount),
				fmt.Sprintf("%d", m.TotalTokens),
				fmt.Sprintf("$%.4f", m.TotalCost),
				avg,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	limits := bt.Limits()
	pterm.Println()
	pterm.DefaultSection.Println("Budget")
	pterm.Printfln("Daily:        $%.4f of %s (%d calls)", status.DailySpend, formatLimit(limits.DailyUSD), status.DailyOps)
	pterm.Printfln("Monthly:      $%.4f of %s (%d calls)", status.MonthlySpend, formatLimit(limits.MonthlyUSD), status.MonthlyOps)
	if limits.CostPerJobUSD > 0 {
		pterm.Printfln("Per job:      $%.4f estimated", limits.CostPerJobUSD)
	}
	return nil
}

// formatLimit renders a budget limit; 0 means unlimited
func formatLimit(usd float64) string {
	if usd <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("$%.2f", usd)
}
